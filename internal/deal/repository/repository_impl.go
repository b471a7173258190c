package repository

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/dealdesk/internal/deal/domain"
	"github.com/smallbiznis/dealdesk/pkg/db/option"
	"github.com/smallbiznis/dealdesk/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const dealColumns = `id, org_id, pipeline_id, stage_id, title, amount_cents, currency, probability,
	 weighted_amount_cents, is_closed, is_won, expected_close_date, actual_close_date,
	 owner_id, deal_type, tags, custom_fields, created_by, updated_by, created_at, updated_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, deal *domain.Deal) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO deals (id, org_id, pipeline_id, stage_id, title, amount_cents, currency, probability,
		 weighted_amount_cents, is_closed, is_won, expected_close_date, actual_close_date,
		 owner_id, deal_type, tags, custom_fields, created_by, updated_by, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		deal.ID,
		deal.OrgID,
		deal.PipelineID,
		deal.StageID,
		deal.Title,
		deal.AmountCents,
		deal.Currency,
		deal.Probability,
		deal.WeightedAmountCents,
		deal.IsClosed,
		deal.IsWon,
		deal.ExpectedCloseDate,
		deal.ActualCloseDate,
		deal.OwnerID,
		deal.DealType,
		deal.Tags,
		deal.CustomFields,
		deal.CreatedBy,
		deal.UpdatedBy,
		deal.CreatedAt,
		deal.UpdatedAt,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, deal *domain.Deal) error {
	return db.WithContext(ctx).Exec(
		`UPDATE deals
		 SET pipeline_id = ?, stage_id = ?, title = ?, amount_cents = ?, currency = ?, probability = ?,
		     weighted_amount_cents = ?, is_closed = ?, is_won = ?, expected_close_date = ?, actual_close_date = ?,
		     owner_id = ?, deal_type = ?, tags = ?, custom_fields = ?, updated_by = ?, updated_at = ?
		 WHERE org_id = ? AND id = ?`,
		deal.PipelineID,
		deal.StageID,
		deal.Title,
		deal.AmountCents,
		deal.Currency,
		deal.Probability,
		deal.WeightedAmountCents,
		deal.IsClosed,
		deal.IsWon,
		deal.ExpectedCloseDate,
		deal.ActualCloseDate,
		deal.OwnerID,
		deal.DealType,
		deal.Tags,
		deal.CustomFields,
		deal.UpdatedBy,
		deal.UpdatedAt,
		deal.OrgID,
		deal.ID,
	).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`DELETE FROM deals WHERE org_id = ? AND id = ?`,
		orgID,
		id,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.Deal, error) {
	var deal domain.Deal
	err := db.WithContext(ctx).Raw(
		`SELECT `+dealColumns+` FROM deals WHERE org_id = ? AND id = ?`,
		orgID,
		id,
	).Scan(&deal).Error
	if err != nil {
		return nil, err
	}
	if deal.ID == 0 {
		return nil, nil
	}
	return &deal, nil
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.Deal, error) {
	query := `SELECT ` + dealColumns + ` FROM deals WHERE org_id = ? AND id = ?`
	if !strings.EqualFold(db.Dialector.Name(), "sqlite") {
		query += " FOR UPDATE"
	}

	var deal domain.Deal
	err := db.WithContext(ctx).Raw(query, orgID, id).Scan(&deal).Error
	if err != nil {
		return nil, err
	}
	if deal.ID == 0 {
		return nil, nil
	}
	return &deal, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter domain.ListDealFilter, page pagination.Pagination) ([]*domain.Deal, error) {
	var deals []*domain.Deal
	stmt := db.WithContext(ctx).
		Model(&domain.Deal{}).
		Where("org_id = ?", orgID)
	if filter.PipelineID != 0 {
		stmt = stmt.Where("pipeline_id = ?", filter.PipelineID)
	}
	if filter.StageID != 0 {
		stmt = stmt.Where("stage_id = ?", filter.StageID)
	}
	if filter.OwnerID != 0 {
		stmt = stmt.Where("owner_id = ?", filter.OwnerID)
	}
	if filter.Currency != "" {
		stmt = stmt.Where("currency = ?", filter.Currency)
	}
	if filter.OnlyOpen {
		stmt = stmt.Where("is_closed = ?", false)
	}
	if filter.OnlyClosed {
		stmt = stmt.Where("is_closed = ?", true)
	}
	if filter.ExpectedFrom != nil {
		stmt = stmt.Where("expected_close_date >= ?", *filter.ExpectedFrom)
	}
	if filter.ExpectedTo != nil {
		stmt = stmt.Where("expected_close_date <= ?", *filter.ExpectedTo)
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	err := stmt.
		Order("created_at desc, id desc").
		Find(&deals).Error
	if err != nil {
		return nil, err
	}
	return deals, nil
}

func (r *repo) ListForForecast(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter domain.ForecastFilter) ([]domain.Deal, error) {
	stmt := db.WithContext(ctx).
		Model(&domain.Deal{}).
		Where("org_id = ?", orgID).
		Where("expected_close_date IS NOT NULL").
		Where("expected_close_date >= ?", filter.Start).
		Where("expected_close_date <= ?", filter.End)
	if filter.PipelineID != 0 {
		stmt = stmt.Where("pipeline_id = ?", filter.PipelineID)
	}
	if filter.Currency != "" {
		stmt = stmt.Where("currency = ?", filter.Currency)
	}

	var deals []domain.Deal
	if err := stmt.Order("expected_close_date ASC, id ASC").Find(&deals).Error; err != nil {
		return nil, err
	}
	return deals, nil
}

func (r *repo) InsertHistory(ctx context.Context, db *gorm.DB, entry *domain.DealStageHistory) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO deal_stage_history (id, org_id, deal_id, pipeline_id, from_stage_id, to_stage_id,
		 changed_by, reason, changed_at, duration_in_prev_hours)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.OrgID,
		entry.DealID,
		entry.PipelineID,
		entry.FromStageID,
		entry.ToStageID,
		entry.ChangedBy,
		entry.Reason,
		entry.ChangedAt,
		entry.DurationInPrevHours,
	).Error
}

func (r *repo) LastHistory(ctx context.Context, db *gorm.DB, orgID, dealID snowflake.ID) (*domain.DealStageHistory, error) {
	var entry domain.DealStageHistory
	err := db.WithContext(ctx).Raw(
		`SELECT id, org_id, deal_id, pipeline_id, from_stage_id, to_stage_id,
		 changed_by, reason, changed_at, duration_in_prev_hours
		 FROM deal_stage_history WHERE org_id = ? AND deal_id = ?
		 ORDER BY changed_at DESC, id DESC LIMIT 1`,
		orgID,
		dealID,
	).Scan(&entry).Error
	if err != nil {
		return nil, err
	}
	if entry.ID == 0 {
		return nil, nil
	}
	return &entry, nil
}

func (r *repo) ListHistory(ctx context.Context, db *gorm.DB, orgID, dealID snowflake.ID) ([]domain.DealStageHistory, error) {
	var entries []domain.DealStageHistory
	err := db.WithContext(ctx).Raw(
		`SELECT id, org_id, deal_id, pipeline_id, from_stage_id, to_stage_id,
		 changed_by, reason, changed_at, duration_in_prev_hours
		 FROM deal_stage_history WHERE org_id = ? AND deal_id = ?
		 ORDER BY changed_at ASC, id ASC`,
		orgID,
		dealID,
	).Scan(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repo) DeleteHistoryByDeal(ctx context.Context, db *gorm.DB, orgID, dealID snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`DELETE FROM deal_stage_history WHERE org_id = ? AND deal_id = ?`,
		orgID,
		dealID,
	).Error
}

package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

const (
	HeaderOrg   = "X-Org-ID"
	HeaderActor = "X-Actor-ID"

	contextOrgIDKey   = "org_id"
	contextActorIDKey = "actor_id"
)

// TenantContext resolves the organization and actor from request headers.
// Both are threaded through as explicit request fields; nothing downstream
// reads them from ambient context.
func (s *Server) TenantContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID, err := parseHeaderID(c.GetHeader(HeaderOrg))
		if err != nil {
			AbortWithError(c, newValidationError("org_id", "invalid_org_id", "invalid org id"))
			return
		}
		if orgID == 0 {
			orgID = snowflake.ID(s.cfg.DefaultOrgID)
		}
		if orgID == 0 {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		actorID, err := parseHeaderID(c.GetHeader(HeaderActor))
		if err != nil {
			AbortWithError(c, newValidationError("actor_id", "invalid_actor_id", "invalid actor id"))
			return
		}

		c.Set(contextOrgIDKey, orgID)
		c.Set(contextActorIDKey, actorID)
		c.Next()
	}
}

func (s *Server) orgID(c *gin.Context) snowflake.ID {
	if v, ok := c.Get(contextOrgIDKey); ok {
		if id, ok := v.(snowflake.ID); ok {
			return id
		}
	}
	return 0
}

func (s *Server) actorID(c *gin.Context) snowflake.ID {
	if v, ok := c.Get(contextActorIDKey); ok {
		if id, ok := v.(snowflake.ID); ok {
			return id
		}
	}
	return 0
}

func parseHeaderID(value string) (snowflake.ID, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, nil
	}
	return snowflake.ParseString(trimmed)
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"inmopresence/config"
	"inmopresence/internal/domain"
	"inmopresence/internal/metrics"
	"inmopresence/internal/models"
	"inmopresence/internal/repository"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OnlineAgent is the public shape of a fresh presence row after the
// query-time profile refresh.
type OnlineAgent struct {
	UserID    uuid.UUID `json:"user_id"`
	Role      string    `json:"role"`
	FullName  string    `json:"full_name"`
	AvatarURL string    `json:"avatar_url"`
	Whatsapp  string    `json:"whatsapp"`
	Email     string    `json:"email"`
	LastSeen  time.Time `json:"last_seen"`
}

// TransitionEvent is published on redis whenever the table path observes
// a user going online or offline, so channel hubs on every instance can
// relay it to their subscribers.
type TransitionEvent struct {
	Event string      `json:"event"` // "online" or "offline"
	Agent OnlineAgent `json:"agent"`
}

const (
	TransitionOnline  = "online"
	TransitionOffline = "offline"

	// TransitionChannel is the redis pub/sub topic for presence transitions.
	TransitionChannel = "presence:transitions"
)

// PresenceService owns both write paths (heartbeat-refresh and
// explicit-clear) and the single read rule (staleness threshold). The
// user_presence table is the system of record; the websocket channel is
// a latency optimization fed from here.
type PresenceService struct {
	cfg      *config.PresenceConfig
	repo     *repository.PresenceRepository
	profiles *repository.ProfileRepository
	redis    *redis.Client
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

func NewPresenceService(
	cfg *config.PresenceConfig,
	repo *repository.PresenceRepository,
	profiles *repository.ProfileRepository,
	redisClient *redis.Client,
	m *metrics.Metrics,
	logger *zap.Logger,
) *PresenceService {
	return &PresenceService{
		cfg:      cfg,
		repo:     repo,
		profiles: profiles,
		redis:    redisClient,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// Heartbeat upserts the caller's presence row with a fresh last_seen.
// Profile fields are re-read on every beat so the denormalized copy
// stays close to the profile; when the profile lookup fails the previous
// stored copy is carried forward. A nil user id is a no-op: presence for
// anonymous sessions is meaningless, not exceptional.
func (s *PresenceService) Heartbeat(ctx context.Context, userID uuid.UUID) error {
	if userID == uuid.Nil {
		return nil
	}

	prev, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		s.logger.Warn("presence: lookup before heartbeat failed", zap.Error(err))
		prev = nil
	}

	row := models.UserPresence{UserID: userID, LastSeen: s.now()}
	prof, err := s.profiles.GetByID(ctx, userID)
	switch {
	case err == nil:
		row.Role = prof.Role
		row.FullName = prof.FullName
		row.AvatarURL = prof.AvatarURL
		row.Whatsapp = prof.ContactWhatsapp()
		row.Email = prof.Email
	case errors.Is(err, gorm.ErrRecordNotFound) && prev != nil:
		row.Role = prev.Role
		row.FullName = prev.FullName
		row.AvatarURL = prev.AvatarURL
		row.Whatsapp = prev.Whatsapp
		row.Email = prev.Email
	case errors.Is(err, gorm.ErrRecordNotFound):
		// first beat of a user with no profile row; keep the bare row
	default:
		return err
	}

	if err := s.repo.Upsert(ctx, &row); err != nil {
		if s.metrics != nil {
			s.metrics.HeartbeatErrorsTotal.Inc()
		}
		return err
	}
	if s.metrics != nil {
		s.metrics.HeartbeatsTotal.Inc()
	}

	wasOnline := prev != nil && s.now().Sub(prev.LastSeen) < s.cfg.StaleThreshold
	if !wasOnline {
		s.publishTransition(ctx, TransitionOnline, agentFromRow(&row))
	}
	return nil
}

// Offline deletes the caller's presence row so the read side sees them
// gone immediately, regardless of how recent the last heartbeat was.
// Idempotent; a nil user id is a no-op.
func (s *PresenceService) Offline(ctx context.Context, userID uuid.UUID) error {
	if userID == uuid.Nil {
		return nil
	}
	prev, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		s.logger.Warn("presence: lookup before offline failed", zap.Error(err))
		prev = nil
	}
	if err := s.repo.Delete(ctx, userID); err != nil {
		return err
	}
	agent := OnlineAgent{UserID: userID}
	if prev != nil {
		agent = agentFromRow(prev)
	}
	s.publishTransition(ctx, TransitionOffline, agent)
	return nil
}

// OnlineAgents is the staleness evaluator: rows younger than the
// threshold, restricted to publicly visible roles, profile fields
// refreshed at read time, super_admin first and then most recently seen.
// An empty slice is a valid answer and distinct from an error.
func (s *PresenceService) OnlineAgents(ctx context.Context, roleFilter string) ([]OnlineAgent, error) {
	cutoff := s.now().Add(-s.cfg.StaleThreshold)
	rows, err := s.repo.ListActiveSince(ctx, cutoff)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.UserID)
	}
	byID, err := s.profiles.ListByIDs(ctx, ids)
	if err != nil {
		// The stored denormalized copy is the fallback; a profile
		// refresh failure must not take the whole query down.
		s.logger.Warn("presence: profile refresh failed, serving stored copies", zap.Error(err))
		byID = nil
	}

	agents := make([]OnlineAgent, 0, len(rows))
	for i := range rows {
		agent := agentFromRow(&rows[i])
		if prof, ok := byID[rows[i].UserID]; ok {
			agent.Role = prof.Role
			agent.FullName = prof.FullName
			agent.AvatarURL = prof.AvatarURL
			agent.Whatsapp = prof.ContactWhatsapp()
			agent.Email = prof.Email
		}
		if !domain.RoleVisible(agent.Role) {
			continue
		}
		if roleFilter != "" && agent.Role != roleFilter {
			continue
		}
		agents = append(agents, agent)
	}

	// Rows arrive last_seen DESC; a stable sort keeps that order within
	// each role tier.
	sort.SliceStable(agents, func(i, j int) bool {
		return domain.RoleRank(agents[i].Role) < domain.RoleRank(agents[j].Role)
	})

	if s.metrics != nil {
		s.metrics.AgentsOnline.Set(float64(len(agents)))
	}
	return agents, nil
}

func (s *PresenceService) publishTransition(ctx context.Context, event string, agent OnlineAgent) {
	if s.redis == nil {
		return
	}
	data, err := json.Marshal(TransitionEvent{Event: event, Agent: agent})
	if err != nil {
		s.logger.Warn("presence: marshal transition failed", zap.Error(err))
		return
	}
	if err := s.redis.Publish(ctx, TransitionChannel, data).Err(); err != nil {
		s.logger.Warn("presence: publish transition failed", zap.Error(err))
	}
}

func agentFromRow(row *models.UserPresence) OnlineAgent {
	return OnlineAgent{
		UserID:    row.UserID,
		Role:      row.Role,
		FullName:  row.FullName,
		AvatarURL: row.AvatarURL,
		Whatsapp:  row.Whatsapp,
		Email:     row.Email,
		LastSeen:  row.LastSeen,
	}
}

package memberport

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"gitlab.com/ccsd.net/internal/core/ports/primary"
	"gitlab.com/ccsd.net/internal/core/ports/secondary"
	"gitlab.com/ccsd.net/internal/domain"
)

var _ secondary.MemberRepository = (*MemberRepository)(nil)

const (
	memberKeyPrefix  = "member:"
	memberIndexKey   = "members"
	memberExpiration = 2 * time.Minute
)

// MemberRepository implements the MemberRepository interface with Redis.
// Each member is a JSON value with a TTL; a set indexes the member ids.
type MemberRepository struct {
	redisClient *redis.Client
	prefix      string
	logger      primary.Logger
}

// NewMemberRepository creates a new Redis member repository
func NewMemberRepository(redisClient *redis.Client, prefix string, logger primary.Logger) *MemberRepository {
	return &MemberRepository{
		redisClient: redisClient,
		prefix:      prefix,
		logger:      logger,
	}
}

func (r *MemberRepository) memberKey(id string) string {
	return fmt.Sprintf("%s%s%s", r.prefix, memberKeyPrefix, id)
}

func (r *MemberRepository) indexKey() string {
	return r.prefix + memberIndexKey
}

// Register saves member information to Redis
func (r *MemberRepository) Register(ctx context.Context, member *domain.Member) error {
	if member.LastHeartbeat.IsZero() {
		member.LastHeartbeat = time.Now()
	}
	if err := r.save(ctx, member); err != nil {
		return err
	}

	// Add member to the index
	if err := r.redisClient.SAdd(ctx, r.indexKey(), member.ID).Err(); err != nil {
		r.logger.Error("Failed to add member to index", "error", err)
		return fmt.Errorf("failed to add member to index: %w", err)
	}
	return nil
}

func (r *MemberRepository) save(ctx context.Context, member *domain.Member) error {
	// Serialize member info
	memberJSON, err := json.Marshal(member)
	if err != nil {
		r.logger.Error("Failed to marshal member info", "error", err)
		return fmt.Errorf("failed to marshal member info: %w", err)
	}

	// Save member info with expiration
	if err := r.redisClient.Set(ctx, r.memberKey(member.ID), memberJSON, memberExpiration).Err(); err != nil {
		r.logger.Error("Failed to save member info", "error", err)
		return fmt.Errorf("failed to save member info: %w", err)
	}
	return nil
}

// getMember retrieves member information from Redis by ID
func (r *MemberRepository) getMember(ctx context.Context, memberID string) (*domain.Member, error) {
	memberJSON, err := r.redisClient.Get(ctx, r.memberKey(memberID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		r.logger.Error("Failed to get member info", "error", err)
		return nil, fmt.Errorf("failed to get member info: %w", err)
	}

	var member domain.Member
	if err := json.Unmarshal(memberJSON, &member); err != nil {
		r.logger.Error("Failed to unmarshal member info", "error", err)
		return nil, fmt.Errorf("failed to unmarshal member info: %w", err)
	}
	return &member, nil
}

// Heartbeat refreshes a member's heartbeat time and TTL
func (r *MemberRepository) Heartbeat(ctx context.Context, memberID string) error {
	member, err := r.getMember(ctx, memberID)
	if err != nil {
		return err
	}
	if member == nil {
		return fmt.Errorf("member not found: %s", memberID)
	}

	member.LastHeartbeat = time.Now()
	return r.save(ctx, member)
}

// Deregister removes a member and its index entry
func (r *MemberRepository) Deregister(ctx context.Context, memberID string) error {
	pipe := r.redisClient.TxPipeline()
	pipe.Del(ctx, r.memberKey(memberID))
	pipe.SRem(ctx, r.indexKey(), memberID)
	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Error("Failed to deregister member", "memberId", memberID, "error", err)
		return fmt.Errorf("failed to deregister member: %w", err)
	}
	return nil
}

// ListMembers retrieves every indexed member. Ids whose value expired are
// dropped from the index on the way.
func (r *MemberRepository) ListMembers(ctx context.Context) ([]*domain.Member, error) {
	memberIDs, err := r.redisClient.SMembers(ctx, r.indexKey()).Result()
	if err != nil {
		r.logger.Error("Failed to get member IDs", "error", err)
		return nil, fmt.Errorf("failed to get member IDs: %w", err)
	}

	members := make([]*domain.Member, 0, len(memberIDs))
	if len(memberIDs) == 0 {
		return members, nil
	}

	keys := make([]string, len(memberIDs))
	for i, id := range memberIDs {
		keys[i] = r.memberKey(id)
	}

	// Use MGET to retrieve all member data at once
	memberData, err := r.redisClient.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve member data: %w", err)
	}

	for i, data := range memberData {
		if data == nil {
			// Member has expired, remove from index
			if err := r.redisClient.SRem(ctx, r.indexKey(), memberIDs[i]).Err(); err != nil {
				r.logger.Error("Failed to remove member from index", "memberId", memberIDs[i], "error", err)
			}
			continue
		}
		var member domain.Member
		if err := json.Unmarshal([]byte(data.(string)), &member); err != nil {
			return nil, fmt.Errorf("failed to unmarshal member data: %w", err)
		}
		members = append(members, &member)
	}

	return members, nil
}

package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"

	"studyblocks-backend/internal/models"
)

// ContactResolver is the identity provider: it maps a session owner to an
// address that can receive mail.
type ContactResolver interface {
	GetUserContact(ctx context.Context, userID uuid.UUID) (*models.UserContact, error)
}

type contactLookup interface {
	GetContact(ctx context.Context, userID uuid.UUID) (*models.UserContact, error)
}

// RepoContactResolver adapts a users table lookup to ContactResolver.
type RepoContactResolver struct {
	users contactLookup
}

func NewRepoContactResolver(users contactLookup) *RepoContactResolver {
	return &RepoContactResolver{users: users}
}

func (r *RepoContactResolver) GetUserContact(ctx context.Context, userID uuid.UUID) (*models.UserContact, error) {
	contact, err := r.users.GetContact(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
			return nil, &NotFoundError{Message: fmt.Sprintf("user %s not found", userID)}
		}
		return nil, fmt.Errorf("failed to load contact for user %s: %w", userID, err)
	}

	contact.Email = strings.TrimSpace(contact.Email)
	if contact.Email == "" {
		return nil, &NotFoundError{Message: fmt.Sprintf("user %s has no email address", userID)}
	}
	return contact, nil
}

// CachedContactResolver is a read-through Redis cache in front of another
// resolver. Only successful lookups are cached.
type CachedContactResolver struct {
	next  ContactResolver
	redis *redis.Client
	ttl   time.Duration
}

func NewCachedContactResolver(next ContactResolver, redisClient *redis.Client, ttl time.Duration) *CachedContactResolver {
	return &CachedContactResolver{next: next, redis: redisClient, ttl: ttl}
}

func contactCacheKey(userID uuid.UUID) string {
	return "user_contact:" + userID.String()
}

func (c *CachedContactResolver) GetUserContact(ctx context.Context, userID uuid.UUID) (*models.UserContact, error) {
	if c.redis == nil {
		return c.next.GetUserContact(ctx, userID)
	}

	key := contactCacheKey(userID)
	raw, err := c.redis.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var contact models.UserContact
		if jsonErr := json.Unmarshal(raw, &contact); jsonErr == nil && contact.Email != "" {
			return &contact, nil
		}
		c.redis.Del(ctx, key)
	case !errors.Is(err, redis.Nil):
		log.Printf("study reminders: contact cache read failed for user %s: %v", userID, err)
	}

	contact, err := c.next.GetUserContact(ctx, userID)
	if err != nil {
		return nil, err
	}

	if data, jsonErr := json.Marshal(contact); jsonErr == nil {
		if setErr := c.redis.Set(ctx, key, data, c.ttl).Err(); setErr != nil {
			log.Printf("study reminders: contact cache write failed for user %s: %v", userID, setErr)
		}
	}
	return contact, nil
}

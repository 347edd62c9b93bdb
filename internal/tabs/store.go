package tabs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/poslane/pkg/db"
	"github.com/angelmondragon/poslane/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const documentSchemaVersion = 1

// userCartsRecord is the sqlite row backing one cashier's tab list. The tab
// list itself is a versioned JSON document so schema evolution never needs
// DDL on a deployed lane.
type userCartsRecord struct {
	Username      string `gorm:"primaryKey;column:username"`
	SchemaVersion int    `gorm:"column:schema_version"`
	Document      string `gorm:"column:document"`
	UpdatedAt     time.Time
}

func (userCartsRecord) TableName() string { return "user_carts" }

type document struct {
	Version     int        `json:"version"`
	Username    string     `json:"username"`
	Tabs        []CartTab  `json:"tabs"`
	ActiveTabID *uuid.UUID `json:"active_tab_id"`
}

// Store persists UserCarts documents. It is the single source of truth for
// what the UI shows between reconciliations.
type Store struct {
	db   *gorm.DB
	logg *logger.Logger
}

// NewStore migrates and wraps the local tab table.
func NewStore(client *db.Client, logg *logger.Logger) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("db client required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if err := client.DB().AutoMigrate(&userCartsRecord{}); err != nil {
		return nil, fmt.Errorf("migrating user_carts: %w", err)
	}
	return &Store{db: client.DB(), logg: logg}, nil
}

// Load returns the persisted UserCarts for the cashier, or nil when there is
// no usable prior state. Storage failures and corrupt documents are
// swallowed: a broken local record must never block startup.
func (s *Store) Load(ctx context.Context, username string) *UserCarts {
	var record userCartsRecord
	err := s.db.WithContext(ctx).First(&record, "username = ?", username).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logg.Warn(s.logg.WithUsername(ctx, username), "local tab store unreadable, starting empty")
		}
		return nil
	}

	var doc document
	if err := json.Unmarshal([]byte(record.Document), &doc); err != nil {
		s.logg.Warn(s.logg.WithUsername(ctx, username), "local tab document corrupt, starting empty")
		return nil
	}
	if doc.Version != documentSchemaVersion {
		s.logg.Warn(s.logg.WithUsername(ctx, username), "local tab document from unknown schema version, starting empty")
		return nil
	}

	userCarts := &UserCarts{
		Username:    username,
		Tabs:        doc.Tabs,
		ActiveTabID: doc.ActiveTabID,
	}
	userCarts.Normalize()
	return userCarts
}

// Save persists the document atomically, normalizing first so every stored
// record satisfies the ordering and active-id invariants.
func (s *Store) Save(ctx context.Context, userCarts *UserCarts) error {
	if userCarts == nil || userCarts.Username == "" {
		return fmt.Errorf("user carts with username required")
	}
	userCarts.Normalize()

	payload, err := json.Marshal(document{
		Version:     documentSchemaVersion,
		Username:    userCarts.Username,
		Tabs:        userCarts.Tabs,
		ActiveTabID: userCarts.ActiveTabID,
	})
	if err != nil {
		return fmt.Errorf("encoding tab document: %w", err)
	}

	record := userCartsRecord{
		Username:      userCarts.Username,
		SchemaVersion: documentSchemaVersion,
		Document:      string(payload),
		UpdatedAt:     time.Now().UTC(),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "username"}},
		UpdateAll: true,
	}).Create(&record).Error
}

// AddOrUpdateTab merges one tab into the cashier's list and persists.
func (s *Store) AddOrUpdateTab(ctx context.Context, username string, tab CartTab) (*UserCarts, error) {
	userCarts := s.Load(ctx, username)
	if userCarts == nil {
		userCarts = &UserCarts{Username: username}
	}

	replaced := false
	for i := range userCarts.Tabs {
		if userCarts.Tabs[i].ID == tab.ID {
			userCarts.Tabs[i] = tab
			replaced = true
			break
		}
	}
	if !replaced {
		userCarts.Tabs = append(userCarts.Tabs, tab)
	}

	if err := s.Save(ctx, userCarts); err != nil {
		return nil, err
	}
	return userCarts, nil
}

// RemoveTab drops a tab and returns the id that should become active next,
// following the precedence rule restricted to the remaining tabs. Callers
// are responsible for refusing to remove the last tab.
func (s *Store) RemoveTab(ctx context.Context, username string, id uuid.UUID) (*uuid.UUID, *UserCarts, error) {
	userCarts := s.Load(ctx, username)
	if userCarts == nil || !userCarts.HasTab(id) {
		return nil, userCarts, nil
	}

	previous := userCarts.ActiveTabID
	remaining := userCarts.Tabs[:0]
	for _, tab := range userCarts.Tabs {
		if tab.ID != id {
			remaining = append(remaining, tab)
		}
	}
	userCarts.Tabs = remaining

	next := ResolveActive(userCarts.Tabs, nil, previous)
	userCarts.ActiveTabID = next

	if err := s.Save(ctx, userCarts); err != nil {
		return nil, nil, err
	}
	return next, userCarts, nil
}

// SetActive switches the active tab; the id must reference a present tab.
func (s *Store) SetActive(ctx context.Context, username string, id uuid.UUID) (*UserCarts, error) {
	userCarts := s.Load(ctx, username)
	if userCarts == nil || !userCarts.HasTab(id) {
		return nil, fmt.Errorf("tab %s not present for %s", id, username)
	}
	userCarts.ActiveTabID = &id
	if err := s.Save(ctx, userCarts); err != nil {
		return nil, err
	}
	return userCarts, nil
}

// Replace persists a reconciled document wholesale. The merge itself happens
// in the reconciliation engine; this write is what makes it atomic from the
// store's point of view.
func (s *Store) Replace(ctx context.Context, userCarts *UserCarts) error {
	return s.Save(ctx, userCarts)
}

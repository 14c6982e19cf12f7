package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"luggage-locker-backend/internal/apperr"
	"luggage-locker-backend/internal/model"
)

// Store defines the persistence operations the locker core depends on.
type Store interface {
	GetLocker(ctx context.Context, id int64) (model.Locker, error)
	GetLockerByNumber(ctx context.Context, number string) (model.Locker, error)
	ListLockers(ctx context.Context) ([]model.Locker, error)
	// PutLocker creates a locker when its ID is zero. Otherwise it rewrites
	// number, location and type and leaves status alone.
	PutLocker(ctx context.Context, locker *model.Locker) error
	DeleteLocker(ctx context.Context, id int64) error
	// SwapLockerStatus moves a locker from one status to another only if it
	// is currently in from; otherwise it returns ErrStatusChanged.
	SwapLockerStatus(ctx context.Context, id int64, from, to model.LockerStatus) error

	GetSession(ctx context.Context, id string) (model.Session, error)
	GetSessionByTag(ctx context.Context, tag string) (model.Session, error)
	ActiveSessionForLocker(ctx context.Context, lockerID int64) (model.Session, error)
	ListSessions(ctx context.Context) ([]model.Session, error)
	ListLockerSessions(ctx context.Context, lockerID int64, limit int) ([]model.Session, error)
	PutSession(ctx context.Context, session *model.Session) error

	// Atomically runs fn as one unit: every write made through tx is
	// committed together or not at all.
	Atomically(ctx context.Context, fn func(tx Store) error) error
	Snapshot(ctx context.Context) (Snapshot, error)

	// DB exposes the underlying connection, nil for non-SQL stores.
	DB() *gorm.DB
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf(format+": %w", append(args, apperr.ErrNotFound)...)
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// conflict maps unique-key violations to apperr.ErrConflict. It relies on the
// connection being opened with TranslateError.
func conflict(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperr.ErrConflict
	}
	return err
}

func (s *gormStore) GetLocker(ctx context.Context, id int64) (model.Locker, error) {
	var locker model.Locker
	if err := s.db.WithContext(ctx).First(&locker, id).Error; err != nil {
		return model.Locker{}, notFound(err, "locker %d", id)
	}
	return locker, nil
}

func (s *gormStore) GetLockerByNumber(ctx context.Context, number string) (model.Locker, error) {
	var locker model.Locker
	if err := s.db.WithContext(ctx).Where("number = ?", number).First(&locker).Error; err != nil {
		return model.Locker{}, notFound(err, "locker number %q", number)
	}
	return locker, nil
}

func (s *gormStore) ListLockers(ctx context.Context) ([]model.Locker, error) {
	var lockers []model.Locker
	if err := s.db.WithContext(ctx).Order("number").Order("id").Find(&lockers).Error; err != nil {
		return nil, fmt.Errorf("failed to list lockers: %w", err)
	}
	return lockers, nil
}

func (s *gormStore) PutLocker(ctx context.Context, locker *model.Locker) error {
	db := s.db.WithContext(ctx)
	if locker.ID == 0 {
		if err := db.Create(locker).Error; err != nil {
			return fmt.Errorf("failed to create locker %q: %w", locker.Number, conflict(err))
		}
		return nil
	}
	// Status only moves through SwapLockerStatus.
	result := db.Model(locker).Select("number", "location", "type", "updated_at").Updates(locker)
	if result.Error != nil {
		return fmt.Errorf("failed to save locker %d: %w", locker.ID, conflict(result.Error))
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("locker %d: %w", locker.ID, apperr.ErrNotFound)
	}
	return nil
}

func (s *gormStore) DeleteLocker(ctx context.Context, id int64) error {
	result := s.db.WithContext(ctx).Delete(&model.Locker{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete locker %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("locker %d: %w", id, apperr.ErrNotFound)
	}
	return nil
}

func (s *gormStore) SwapLockerStatus(ctx context.Context, id int64, from, to model.LockerStatus) error {
	result := s.db.WithContext(ctx).
		Model(&model.Locker{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if result.Error != nil {
		return fmt.Errorf("failed to update status of locker %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("locker %d not %s: %w", id, from, ErrStatusChanged)
	}
	return nil
}

func (s *gormStore) GetSession(ctx context.Context, id string) (model.Session, error) {
	var session model.Session
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&session).Error; err != nil {
		return model.Session{}, notFound(err, "session %q", id)
	}
	return session, nil
}

func (s *gormStore) GetSessionByTag(ctx context.Context, tag string) (model.Session, error) {
	var session model.Session
	if err := s.db.WithContext(ctx).Where("tag_number = ?", tag).First(&session).Error; err != nil {
		return model.Session{}, notFound(err, "tag %q", tag)
	}
	return session, nil
}

func (s *gormStore) ActiveSessionForLocker(ctx context.Context, lockerID int64) (model.Session, error) {
	var session model.Session
	err := s.db.WithContext(ctx).
		Where("locker_id = ? AND status = ?", lockerID, model.SessionStored).
		First(&session).Error
	if err != nil {
		return model.Session{}, notFound(err, "active session for locker %d", lockerID)
	}
	return session, nil
}

func (s *gormStore) ListSessions(ctx context.Context) ([]model.Session, error) {
	var sessions []model.Session
	if err := s.db.WithContext(ctx).Order("check_in_at DESC").Order("id").Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

func (s *gormStore) ListLockerSessions(ctx context.Context, lockerID int64, limit int) ([]model.Session, error) {
	q := s.db.WithContext(ctx).Where("locker_id = ?", lockerID).Order("check_in_at DESC").Order("id")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var sessions []model.Session
	if err := q.Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("failed to list sessions for locker %d: %w", lockerID, err)
	}
	return sessions, nil
}

func (s *gormStore) PutSession(ctx context.Context, session *model.Session) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(session).Error
	if err != nil {
		return fmt.Errorf("failed to save session %s: %w", session.TagNumber, conflict(err))
	}
	return nil
}

func (s *gormStore) Atomically(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	})
}

// Snapshot reads lockers and sessions in one transaction. PostgreSQL needs
// repeatable read for both SELECTs to see the same commit state.
func (s *gormStore) Snapshot(ctx context.Context) (Snapshot, error) {
	var opts []*sql.TxOptions
	if s.db.Dialector.Name() == "postgres" {
		opts = append(opts, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	}

	var snap Snapshot
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inner := &gormStore{db: tx}
		var err error
		if snap.Lockers, err = inner.ListLockers(ctx); err != nil {
			return err
		}
		snap.Sessions, err = inner.ListSessions(ctx)
		return err
	}, opts...)
	if err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

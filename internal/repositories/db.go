package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when a scoped lookup matches no row.
	ErrNotFound = errors.New("record not found")
	// ErrStaleState is returned when a compare-and-swap update matched no row
	// because the row left the expected state.
	ErrStaleState = errors.New("record changed concurrently")
	// ErrDuplicatePending is returned when an organization already has a request
	// awaiting verification.
	ErrDuplicatePending = errors.New("organization already has a pending request")
)

const uniqueViolation = "23505"

// DBTX is satisfied by *pgxpool.Pool, pgx.Tx and pgxmock.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Pool is a DBTX that can open transactions.
type Pool interface {
	DBTX
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// Repos bundles every repository bound to the same connection or transaction.
type Repos struct {
	Organizations        OrganizationRepository
	SubscriptionRequests SubscriptionRequestRepository
	Usage                UsageRepository
	Resources            ResourceRepository
	AuditLogs            AuditLogsRepository
	Users                UserRepository
}

func NewRepos(db DBTX) *Repos {
	return &Repos{
		Organizations:        NewOrganizationRepo(db),
		SubscriptionRequests: NewSubscriptionRequestRepo(db),
		Usage:                NewUsageRepo(db),
		Resources:            NewResourceRepo(db),
		AuditLogs:            NewAuditLogsRepo(db),
		Users:                NewUserRepo(db),
	}
}

// Store hands out repositories and runs units of work atomically.
type Store interface {
	Repos() *Repos
	// InTx runs fn inside one transaction. fn's error rolls the transaction back.
	InTx(ctx context.Context, fn func(r *Repos) error) error
}

type pgStore struct {
	pool  Pool
	repos *Repos
}

func NewStore(pool Pool) Store {
	return &pgStore{pool: pool, repos: NewRepos(pool)}
}

func (s *pgStore) Repos() *Repos {
	return s.repos
}

func (s *pgStore) InTx(ctx context.Context, fn func(r *Repos) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(NewRepos(tx)); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

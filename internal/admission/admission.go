// Package admission is the Admission Controller (spec.md C4): gates every
// dial attempt against the tenant's and the engine's global concurrency
// caps before a call is originated.
//
// Redis is the fast path (AcquireConcurrencyCap/ReleaseConcurrencyCap, the
// same Lua-script counters the teacher's wallet/rbac packages use for
// per-workspace caps): when configured and reachable, it can reject early.
// The Postgres active_calls check runs on every Reserve, whether or not
// Redis is present, and is the source of truth: CountInFlight and
// ReserveActiveCall read and write inside one transaction.
package admission

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"campaign-engine/internal/metrics"
	"campaign-engine/internal/store"
	"campaign-engine/pkg/utils"
)

var (
	// ErrTenantOverloaded means tenantID is at its MaxConcurrentCalls cap.
	ErrTenantOverloaded = errors.New("admission: tenant at concurrency cap")
	// ErrGlobalOverloaded means the engine is at GLOBAL_MAX_CALLS.
	ErrGlobalOverloaded = errors.New("admission: global concurrency cap reached")
)

type Controller struct {
	db        *sql.DB
	store     *store.Store
	rdb       *redis.Client // optional; nil disables the Redis fast path
	globalCap int
	capTTL    time.Duration
}

func New(db *sql.DB, st *store.Store, rdb *redis.Client, globalCap int, capTTL time.Duration) *Controller {
	if capTTL <= 0 {
		capTTL = 2 * time.Minute
	}
	return &Controller{db: db, store: st, rdb: rdb, globalCap: globalCap, capTTL: capTTL}
}

const globalCounterKey = "admission:global"

func tenantCounterKey(tenantID string) string {
	return fmt.Sprintf("admission:tenant:%s", tenantID)
}

// Reserve admits one in-flight call for tenantID against both caps and
// writes the active_calls reservation row, atomically with the Postgres
// count check. When Redis is configured it is consulted first as a cheap
// reject-fast path; Postgres remains authoritative either way.
func (c *Controller) Reserve(ctx context.Context, tenant store.Tenant, call store.ActiveCall) error {
	if c.rdb != nil {
		okGlobal, err := utils.AcquireConcurrencyCap(ctx, c.rdb, globalCounterKey, c.globalCap, c.capTTL)
		if err == nil && !okGlobal {
			return ErrGlobalOverloaded
		}
		if err == nil {
			okTenant, err := utils.AcquireConcurrencyCap(ctx, c.rdb, tenantCounterKey(tenant.TenantID), tenant.MaxConcurrentCalls, c.capTTL)
			if err == nil && !okTenant {
				_ = utils.ReleaseConcurrencyCap(ctx, c.rdb, globalCounterKey)
				return ErrTenantOverloaded
			}
			if err != nil {
				_ = utils.ReleaseConcurrencyCap(ctx, c.rdb, globalCounterKey)
			}
		}
		// Redis errors fall through to the Postgres path rather than fail
		// admission outright; the row-level check below is authoritative.
	}

	err := store.WithTx(ctx, c.db, func(ctx context.Context, tx *sql.Tx) error {
		globalCount, err := c.store.CountInFlight(ctx, tx, "")
		if err != nil {
			return err
		}
		if globalCount >= c.globalCap {
			return ErrGlobalOverloaded
		}
		tenantCount, err := c.store.CountInFlight(ctx, tx, tenant.TenantID)
		if err != nil {
			return err
		}
		if tenantCount >= tenant.MaxConcurrentCalls {
			return ErrTenantOverloaded
		}
		return c.store.ReserveActiveCall(ctx, tx, call)
	})
	switch {
	case err == nil:
		metrics.AdmissionDecisionsTotal.WithLabelValues("admitted").Inc()
	case errors.Is(err, ErrGlobalOverloaded):
		metrics.AdmissionDecisionsTotal.WithLabelValues("global_overloaded").Inc()
	case errors.Is(err, ErrTenantOverloaded):
		metrics.AdmissionDecisionsTotal.WithLabelValues("tenant_overloaded").Inc()
	default:
		metrics.AdmissionDecisionsTotal.WithLabelValues("error").Inc()
	}
	return err
}

// Release frees the Redis-side slots for a call that has ended; the
// Postgres active_calls row transitions to a terminal status separately
// (store.TransitionActiveCall) and is never deleted, since it is the
// billing engine's source record.
func (c *Controller) Release(ctx context.Context, tenantID string) {
	if c.rdb == nil {
		return
	}
	_ = utils.ReleaseConcurrencyCap(ctx, c.rdb, tenantCounterKey(tenantID))
	_ = utils.ReleaseConcurrencyCap(ctx, c.rdb, globalCounterKey)
}

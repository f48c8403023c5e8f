// Package registry lists and removes the account records kept under
// users/. It is an administrative view and does not check who is asking.
package registry

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"todola/backend/internal/models"
	"todola/backend/internal/monitoring"
	"todola/backend/internal/store"
)

const (
	UsersPath   = "users"
	MsgNoUsers  = "No users found"
	deleteOpTag = "account_delete"
)

type Store interface {
	Subscribe(ctx context.Context, path string, fn func(store.Snapshot)) (store.Subscription, error)
	Read(ctx context.Context, path string) (store.Snapshot, error)
	Delete(ctx context.Context, path string) error
}

func Materialize(snap store.Snapshot) []models.Account {
	accounts := make([]models.Account, 0, len(snap.Children))
	for _, child := range snap.Children {
		var account models.Account
		_ = json.Unmarshal(child.Value, &account)
		if account.UID == "" {
			account.UID = child.Key
		}
		accounts = append(accounts, account)
	}
	return accounts
}

func List(ctx context.Context, s Store) ([]models.Account, error) {
	snap, err := s.Read(ctx, UsersPath)
	if err != nil {
		return nil, err
	}
	return Materialize(snap), nil
}

func AccountPath(uid string) string { return UsersPath + "/" + uid }

// Remove deletes users/<uid> and waits for the store.
func Remove(ctx context.Context, s Store, uid string) error {
	err := s.Delete(ctx, AccountPath(uid))
	if err != nil {
		monitoring.RecordMutation(deleteOpTag, "remote_write")
		return err
	}
	monitoring.RecordMutation(deleteOpTag, "ok")
	return nil
}

type View struct {
	store   Store
	publish func([]models.Account)
	log     *slog.Logger

	mu       sync.Mutex
	sub      store.Subscription
	accounts []models.Account
	inflight sync.WaitGroup
}

func NewView(s Store, publish func([]models.Account), log *slog.Logger) *View {
	return &View{store: s, publish: publish, log: log.With("component", "registry")}
}

func (v *View) Start(ctx context.Context) error {
	sub, err := v.store.Subscribe(ctx, UsersPath, func(snap store.Snapshot) {
		accounts := Materialize(snap)
		v.mu.Lock()
		v.accounts = accounts
		v.mu.Unlock()
		v.publish(accounts)
	})
	if err != nil {
		return err
	}

	v.mu.Lock()
	v.sub = sub
	v.mu.Unlock()
	return nil
}

func (v *View) Accounts() []models.Account {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]models.Account(nil), v.accounts...)
}

// Delete removes users/<uid> without waiting for the store.
func (v *View) Delete(uid string) {
	v.inflight.Add(1)
	go func() {
		defer v.inflight.Done()
		if err := Remove(context.Background(), v.store, uid); err != nil {
			v.log.Warn("failed to delete account", "uid", uid, "error", err)
		}
	}()
}

// Stop ends the subscription and waits for pending deletes.
func (v *View) Stop() {
	v.mu.Lock()
	sub := v.sub
	v.sub = nil
	v.mu.Unlock()

	if sub != nil {
		sub.Stop()
	}
	v.inflight.Wait()
}

package httpapi

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// ErrUnknownKind is returned for dropdown kinds no tenant has data for.
var ErrUnknownKind = errors.New("unknown dropdown kind")

// Subscription is a tenant-owned subscription row.
type Subscription struct {
	ID     string `json:"id"`
	Plan   string `json:"plan"`
	Status string `json:"status"`
}

// Option is one entry of a tenant-scoped dropdown.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Directory serves tenant-scoped resource data. Implementations receive
// the tenant from the validated principal; they never see the request
// and cannot be tricked by caller-supplied tenant parameters.
type Directory interface {
	Subscriptions(ctx context.Context, tenantID string) ([]Subscription, error)
	Dropdown(ctx context.Context, tenantID, kind string) ([]Option, error)
}

// StaticDirectory is an in-memory Directory keyed by tenant.
type StaticDirectory struct {
	mu            sync.RWMutex
	subscriptions map[string][]Subscription
	dropdowns     map[string]map[string][]Option
}

func NewStaticDirectory() *StaticDirectory {
	return &StaticDirectory{
		subscriptions: make(map[string][]Subscription),
		dropdowns:     make(map[string]map[string][]Option),
	}
}

// AddSubscription registers a subscription under a tenant.
func (d *StaticDirectory) AddSubscription(tenantID string, sub Subscription) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subscriptions[tenantID] = append(d.subscriptions[tenantID], sub)
}

// SetDropdown replaces the options of one dropdown kind for a tenant.
func (d *StaticDirectory) SetDropdown(tenantID, kind string, options []Option) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dropdowns[tenantID] == nil {
		d.dropdowns[tenantID] = make(map[string][]Option)
	}
	d.dropdowns[tenantID][kind] = append([]Option(nil), options...)
}

// Subscriptions returns the tenant's subscriptions. Unknown tenants get
// an empty list, not an error: an authorized principal with no data is
// not a failure.
func (d *StaticDirectory) Subscriptions(_ context.Context, tenantID string) ([]Subscription, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	subs := d.subscriptions[tenantID]
	out := make([]Subscription, len(subs))
	copy(out, subs)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (d *StaticDirectory) Dropdown(_ context.Context, tenantID, kind string) ([]Option, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	options, ok := d.dropdowns[tenantID][kind]
	if !ok {
		return nil, ErrUnknownKind
	}
	out := make([]Option, len(options))
	copy(out, options)
	return out, nil
}

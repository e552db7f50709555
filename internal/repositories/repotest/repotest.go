// Package repotest provides in-memory repositories with the same conditional
// write semantics as the postgres ones.
package repotest

import (
	"context"
	"sort"
	"sync"
	"time"

	"biteback/internal/models"
	"biteback/internal/repositories"
	"biteback/internal/types"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// New returns a Repository backed by a single shared Store.
func New() (repositories.Repository, *Store) {
	store := NewStore()
	return repositories.Repository{
		User:              &Users{store},
		Restaurant:        &Restaurants{store},
		Mission:           &Missions{store},
		MissionCompletion: &Completions{store},
	}, store
}

type Store struct {
	mu          sync.Mutex
	users       map[uuid.UUID]*models.User
	restaurants map[uuid.UUID]*models.Restaurant
	missions    map[uuid.UUID]*models.Mission
	completions map[uuid.UUID]*models.MissionCompletion

	// FailWrites makes every write return ErrStore.
	FailWrites bool
}

func NewStore() *Store {
	return &Store{
		users:       map[uuid.UUID]*models.User{},
		restaurants: map[uuid.UUID]*models.Restaurant{},
		missions:    map[uuid.UUID]*models.Mission{},
		completions: map[uuid.UUID]*models.MissionCompletion{},
	}
}

func (s *Store) writeErr() error {
	if s.FailWrites {
		return types.ErrStore
	}
	return nil
}

// Completion returns a copy of the ledger row for the pair, or nil.
func (s *Store) Completion(customerID, missionID uuid.UUID) *models.MissionCompletion {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c := s.findCompletion(customerID, missionID); c != nil {
		return cloneCompletion(c)
	}
	return nil
}

func (s *Store) findCompletion(customerID, missionID uuid.UUID) *models.MissionCompletion {
	for _, c := range s.completions {
		if c.CustomerID == customerID && c.MissionID == missionID {
			return c
		}
	}
	return nil
}

func cloneCompletion(c *models.MissionCompletion) *models.MissionCompletion {
	out := *c
	out.StepProofs = append([]string(nil), c.StepProofs...)
	if c.VoucherID != nil {
		v := *c.VoucherID
		out.VoucherID = &v
	}
	return &out
}

func cloneMission(m *models.Mission) *models.Mission {
	out := *m
	out.Steps = append([]models.MissionStep(nil), m.Steps...)
	return &out
}

type Users struct{ s *Store }

func (r *Users) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if u, ok := r.s.users[id]; ok {
		out := *u
		return &out, nil
	}
	return nil, types.ErrNotFound
}

func (r *Users) GetByExternalID(_ context.Context, externalID string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.ExternalID == externalID {
			out := *u
			return &out, nil
		}
	}
	return nil, types.ErrNotFound
}

func (r *Users) FindOrCreateFromToken(ctx context.Context, info types.TokenInfo) (*models.User, error) {
	if u, err := r.GetByExternalID(ctx, info.Subject); err == nil {
		return u, nil
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.writeErr(); err != nil {
		return nil, err
	}

	role := models.ParseRole(info.Role)
	user := &models.User{ExternalID: info.Subject, Role: role, IsActive: true}
	user.ID = uuid.New()
	user.UpdateFromToken(info.Email, info.Name, role)
	r.s.users[user.ID] = user

	out := *user
	return &out, nil
}

func (r *Users) Update(_ context.Context, user *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.writeErr(); err != nil {
		return err
	}
	out := *user
	r.s.users[user.ID] = &out
	return nil
}

type Restaurants struct{ s *Store }

func (r *Restaurants) GetByID(_ context.Context, id uuid.UUID) (*models.Restaurant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if rest, ok := r.s.restaurants[id]; ok {
		out := *rest
		return &out, nil
	}
	return nil, types.ErrNotFound
}

func (r *Restaurants) GetByOwnerID(_ context.Context, ownerID uuid.UUID) (*models.Restaurant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, rest := range r.s.restaurants {
		if rest.OwnerID == ownerID {
			out := *rest
			return &out, nil
		}
	}
	return nil, types.ErrNotFound
}

func (r *Restaurants) ListWithActiveMissions(_ context.Context) ([]*models.Restaurant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []*models.Restaurant
	for _, rest := range r.s.restaurants {
		copyRest := *rest
		copyRest.Missions = nil
		for _, m := range r.s.missions {
			if m.RestaurantID == rest.ID && m.IsActive() {
				copyRest.Missions = append(copyRest.Missions, *cloneMission(m))
			}
		}
		out = append(out, &copyRest)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *Restaurants) Create(_ context.Context, restaurant *models.Restaurant) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.writeErr(); err != nil {
		return err
	}
	for _, rest := range r.s.restaurants {
		if rest.OwnerID == restaurant.OwnerID {
			return types.ErrStore
		}
	}
	if restaurant.ID == uuid.Nil {
		restaurant.ID = uuid.New()
	}
	out := *restaurant
	r.s.restaurants[restaurant.ID] = &out
	return nil
}

func (r *Restaurants) Update(_ context.Context, restaurant *models.Restaurant) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.writeErr(); err != nil {
		return err
	}
	out := *restaurant
	r.s.restaurants[restaurant.ID] = &out
	return nil
}

type Missions struct{ s *Store }

func (r *Missions) GetByID(_ context.Context, id uuid.UUID) (*models.Mission, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if m, ok := r.s.missions[id]; ok {
		return cloneMission(m), nil
	}
	return nil, types.ErrNotFound
}

func (r *Missions) ListByRestaurant(
	_ context.Context,
	restaurantID uuid.UUID,
	activeOnly bool,
) ([]*models.Mission, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []*models.Mission
	for _, m := range r.s.missions {
		if m.RestaurantID != restaurantID || (activeOnly && !m.IsActive()) {
			continue
		}
		out = append(out, cloneMission(m))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

func (r *Missions) Create(_ context.Context, mission *models.Mission) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.writeErr(); err != nil {
		return err
	}
	if mission.ID == uuid.Nil {
		mission.ID = uuid.New()
	}
	if mission.Status == "" {
		mission.Status = models.MissionStatusActive
	}
	r.s.missions[mission.ID] = cloneMission(mission)
	return nil
}

func (r *Missions) Update(_ context.Context, mission *models.Mission) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.writeErr(); err != nil {
		return err
	}
	r.s.missions[mission.ID] = cloneMission(mission)
	return nil
}

func (r *Missions) Delete(_ context.Context, mission *models.Mission) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.writeErr(); err != nil {
		return err
	}
	delete(r.s.missions, mission.ID)
	return nil
}

func (r *Missions) DeactivateExpired(_ context.Context, now time.Time) ([]uuid.UUID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.writeErr(); err != nil {
		return nil, err
	}

	var expired []uuid.UUID
	for _, m := range r.s.missions {
		if m.IsActive() && m.IsExpired(now) {
			m.Status = models.MissionStatusInactive
			expired = append(expired, m.ID)
		}
	}
	return expired, nil
}

type Completions struct{ s *Store }

func (r *Completions) Get(_ context.Context, customerID, missionID uuid.UUID) (*models.MissionCompletion, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if c := r.s.findCompletion(customerID, missionID); c != nil {
		return cloneCompletion(c), nil
	}
	return nil, types.ErrNotFound
}

func (r *Completions) GetByVoucherID(_ context.Context, voucherID string) (*models.MissionCompletion, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.completions {
		if c.Voucher() == voucherID {
			return cloneCompletion(c), nil
		}
	}
	return nil, types.ErrNotFound
}

func (r *Completions) ListByCustomer(_ context.Context, customerID uuid.UUID) ([]*models.MissionCompletion, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []*models.MissionCompletion
	for _, c := range r.s.completions {
		if c.CustomerID == customerID {
			out = append(out, cloneCompletion(c))
		}
	}
	return out, nil
}

func (r *Completions) CreateIfAbsent(_ context.Context, completion *models.MissionCompletion) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.writeErr(); err != nil {
		return err
	}
	if r.s.findCompletion(completion.CustomerID, completion.MissionID) != nil {
		return nil
	}
	if completion.ID == uuid.Nil {
		completion.ID = uuid.New()
	}
	completion.CreatedAt = time.Now()
	r.s.completions[completion.ID] = cloneCompletion(completion)
	return nil
}

func (r *Completions) UpdateProofs(_ context.Context, id uuid.UUID, version int, proofs []string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.writeErr(); err != nil {
		return false, err
	}

	c, ok := r.s.completions[id]
	if !ok || c.Version != version || c.HasVoucher() {
		return false, nil
	}
	c.StepProofs = append([]string(nil), proofs...)
	c.Version++
	return true, nil
}

func (r *Completions) SetVoucher(_ context.Context, id uuid.UUID, voucherID string, completedAt time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.writeErr(); err != nil {
		return false, err
	}

	c, ok := r.s.completions[id]
	if !ok || c.HasVoucher() {
		return false, nil
	}
	c.VoucherID = &voucherID
	c.CompletedAt = &completedAt
	c.Version++
	return true, nil
}

func (r *Completions) Redeem(
	_ context.Context,
	voucherID string,
	restaurantID uuid.UUID,
	redeemedBy uuid.UUID,
	redeemedAt time.Time,
) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.writeErr(); err != nil {
		return false, err
	}

	for _, c := range r.s.completions {
		if c.Voucher() != voucherID || c.RestaurantID != restaurantID || c.Redeemed {
			continue
		}
		c.Redeemed = true
		c.RedeemedAt = &redeemedAt
		c.RedeemedBy = &redeemedBy
		return true, nil
	}
	return false, nil
}

func (r *Completions) CountsByMission(_ context.Context, missionID uuid.UUID) (repositories.CompletionCounts, error) {
	return r.count(func(c *models.MissionCompletion) bool { return c.MissionID == missionID }), nil
}

func (r *Completions) CountsByCustomer(_ context.Context, customerID uuid.UUID) (repositories.CompletionCounts, error) {
	return r.count(func(c *models.MissionCompletion) bool { return c.CustomerID == customerID }), nil
}

func (r *Completions) CountsByRestaurant(
	_ context.Context,
	restaurantID uuid.UUID,
) (repositories.RestaurantCounts, error) {
	counts := repositories.RestaurantCounts{
		CompletionCounts: r.count(func(c *models.MissionCompletion) bool { return c.RestaurantID == restaurantID }),
		RedeemedValue:    decimal.Zero,
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.completions {
		if c.RestaurantID != restaurantID || !c.Redeemed {
			continue
		}
		if m, ok := r.s.missions[c.MissionID]; ok && m.RewardValue != nil {
			counts.RedeemedValue = counts.RedeemedValue.Add(*m.RewardValue)
		}
	}
	return counts, nil
}

func (r *Completions) InvalidateStats(_ context.Context, _, _, _ uuid.UUID) error {
	return nil
}

func (r *Completions) count(match func(*models.MissionCompletion) bool) repositories.CompletionCounts {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var counts repositories.CompletionCounts
	for _, c := range r.s.completions {
		if !match(c) {
			continue
		}
		if c.HasVoucher() {
			counts.Completed++
		}
		if c.Redeemed {
			counts.Redeemed++
		}
	}
	return counts
}

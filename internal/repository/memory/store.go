// Package memory содержит хранилище в памяти процесса с тем же контрактом, что и PostgreSQL.
// Используется в режиме разработки без БД и в тестах.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/bartender-loyalty/internal/cart"
	"github.com/mmeshcher/bartender-loyalty/internal/model"
	"github.com/mmeshcher/bartender-loyalty/internal/orderflow"
)

type cartLine struct {
	prizeID  int64
	quantity int
}

type cartState struct {
	version int64
	lines   []cartLine
}

type bar struct {
	name   string
	cityID int64
}

type unlock struct {
	code string
	at   time.Time
}

// Store хранит все данные под одним мьютексом, поэтому каждая операция атомарна.
type Store struct {
	mu sync.Mutex

	seq int64

	users       map[int64]*model.User
	cities      map[int64]string
	bars        map[int64]bar
	products    map[int64]model.Product
	prizes      map[int64]model.Prize
	sales       []model.Sale
	ledger      []model.LedgerEntry
	carts       map[int64]*cartState
	orders      map[int64]*model.Order
	withdrawals []*model.WithdrawalRequest
	unlocks     map[int64][]unlock
}

// New создаёт пустое хранилище.
func New() *Store {
	return &Store{
		users:    make(map[int64]*model.User),
		cities:   make(map[int64]string),
		bars:     make(map[int64]bar),
		products: make(map[int64]model.Product),
		prizes:   make(map[int64]model.Prize),
		carts:    make(map[int64]*cartState),
		orders:   make(map[int64]*model.Order),
		unlocks:  make(map[int64][]unlock),
	}
}

// Close ничего не освобождает.
func (s *Store) Close() error {
	return nil
}

func (s *Store) nextID() int64 {
	s.seq++
	return s.seq
}

// CreateUser сохраняет пользователя. Логин уникален без учёта регистра.
func (s *Store) CreateUser(_ context.Context, u model.User) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if strings.EqualFold(existing.Login, u.Login) {
			return 0, model.ErrUserExists
		}
	}
	if err := s.checkRefs(u.CityID, u.BarID); err != nil {
		return 0, err
	}

	u.ID = s.nextID()
	u.Points = 0
	s.users[u.ID] = &u
	return u.ID, nil
}

func (s *Store) checkRefs(cityID, barID *int64) error {
	if cityID != nil {
		if _, ok := s.cities[*cityID]; !ok {
			return &model.ValidationError{Field: "city_id", Reason: "unknown city"}
		}
	}
	if barID != nil {
		if _, ok := s.bars[*barID]; !ok {
			return &model.ValidationError{Field: "bar_id", Reason: "unknown bar"}
		}
	}
	return nil
}

// GetUserByLogin возвращает пользователя по логину.
func (s *Store) GetUserByLogin(_ context.Context, login string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Login, login) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, model.ErrNotFound
}

// GetUser возвращает пользователя по идентификатору.
func (s *Store) GetUser(_ context.Context, id int64) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

// GetProfile возвращает профиль пользователя с названиями города и бара.
func (s *Store) GetProfile(_ context.Context, id int64) (*model.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, model.ErrNotFound
	}

	p := &model.UserProfile{
		ID:          u.ID,
		Login:       u.Login,
		DisplayName: u.DisplayName,
		Role:        u.Role,
		Points:      u.Points,
		CreatedAt:   u.CreatedAt,
	}
	if u.CityID != nil {
		p.City = &model.Ref{ID: *u.CityID, Name: s.cities[*u.CityID]}
	}
	if u.BarID != nil {
		b := s.bars[*u.BarID]
		p.Bar = &model.Ref{ID: *u.BarID, Name: b.name}
		if p.City == nil {
			p.City = &model.Ref{ID: b.cityID, Name: s.cities[b.cityID]}
		}
	}
	return p, nil
}

// CreateCity добавляет город.
func (s *Store) CreateCity(_ context.Context, name string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID()
	s.cities[id] = name
	return id, nil
}

// CreateBar добавляет бар в город.
func (s *Store) CreateBar(_ context.Context, name string, cityID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.cities[cityID]; !ok {
		return 0, &model.ValidationError{Field: "city_id", Reason: "unknown city"}
	}
	id := s.nextID()
	s.bars[id] = bar{name: name, cityID: cityID}
	return id, nil
}

// ListBars возвращает бары с городами.
func (s *Store) ListBars(_ context.Context) ([]model.Bar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := make([]model.Bar, 0, len(s.bars))
	for id, b := range s.bars {
		res = append(res, model.Bar{ID: id, Name: b.name, City: model.Ref{ID: b.cityID, Name: s.cities[b.cityID]}})
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	return res, nil
}

// CreateProduct сохраняет продукт.
func (s *Store) CreateProduct(_ context.Context, p model.Product) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p.ID = s.nextID()
	s.products[p.ID] = p
	return p.ID, nil
}

// GetProduct возвращает продукт по идентификатору.
func (s *Store) GetProduct(_ context.Context, id int64) (*model.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return &p, nil
}

// ListProducts возвращает продукты, отсортированные по бренду и названию.
func (s *Store) ListProducts(_ context.Context, onlyActive bool) ([]model.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := make([]model.Product, 0, len(s.products))
	for _, p := range s.products {
		if onlyActive && !p.Active {
			continue
		}
		res = append(res, p)
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].Brand != res[j].Brand {
			return res[i].Brand < res[j].Brand
		}
		return res[i].Name < res[j].Name
	})
	return res, nil
}

// CreatePrize сохраняет приз.
func (s *Store) CreatePrize(_ context.Context, p model.Prize) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p.ID = s.nextID()
	s.prizes[p.ID] = p
	return p.ID, nil
}

// GetPrize возвращает приз по идентификатору.
func (s *Store) GetPrize(_ context.Context, id int64) (*model.Prize, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.prizes[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return &p, nil
}

// ListPrizes возвращает призы по возрастанию стоимости.
func (s *Store) ListPrizes(_ context.Context, onlyAvailable bool) ([]model.Prize, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := make([]model.Prize, 0, len(s.prizes))
	for _, p := range s.prizes {
		if onlyAvailable && !p.Available {
			continue
		}
		res = append(res, p)
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].Cost != res[j].Cost {
			return res[i].Cost < res[j].Cost
		}
		return res[i].ID < res[j].ID
	})
	return res, nil
}

// SetPrizeAvailability включает или снимает приз с выдачи.
func (s *Store) SetPrizeAvailability(_ context.Context, id int64, available bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.prizes[id]
	if !ok {
		return model.ErrNotFound
	}
	p.Available = available
	s.prizes[id] = p
	return nil
}

// RecordSale сохраняет продажу, запись начисления и обновляет баланс баллов.
func (s *Store) RecordSale(_ context.Context, sale model.Sale) (*model.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[sale.UserID]
	if !ok {
		return nil, model.ErrNotFound
	}
	if _, ok := s.products[sale.ProductID]; !ok {
		return nil, model.ErrNotFound
	}

	sale.ID = s.nextID()
	s.sales = append(s.sales, sale)

	saleID := sale.ID
	s.appendLedger(u, model.LedgerEntry{
		UserID:      sale.UserID,
		Type:        model.LedgerEarned,
		Amount:      sale.Points,
		Description: "sale of " + sale.ProductName,
		SaleID:      &saleID,
		CreatedAt:   sale.CreatedAt,
	})

	return &sale, nil
}

func (s *Store) appendLedger(u *model.User, e model.LedgerEntry) model.LedgerEntry {
	e.ID = s.nextID()
	s.ledger = append(s.ledger, e)
	u.Points += e.Signed()
	return e
}

// ListSales возвращает продажи пользователя, новые первыми.
func (s *Store) ListSales(_ context.Context, userID int64) ([]model.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res []model.Sale
	for i := len(s.sales) - 1; i >= 0; i-- {
		if s.sales[i].UserID == userID {
			res = append(res, s.sales[i])
		}
	}
	return res, nil
}

// AddLedgerEntry добавляет ручную корректировку баллов. Списание не может увести баланс ниже нуля.
func (s *Store) AddLedgerEntry(_ context.Context, e model.LedgerEntry) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[e.UserID]
	if !ok {
		return 0, model.ErrNotFound
	}
	if u.Points+e.Signed() < 0 {
		return 0, model.ErrInsufficientPoints
	}
	s.appendLedger(u, e)
	return u.Points, nil
}

// ListLedger возвращает журнал баллов пользователя, новые записи первыми.
func (s *Store) ListLedger(_ context.Context, userID int64) ([]model.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res []model.LedgerEntry
	for i := len(s.ledger) - 1; i >= 0; i-- {
		if s.ledger[i].UserID == userID {
			res = append(res, s.ledger[i])
		}
	}
	return res, nil
}

// GetBalance возвращает баланс баллов и денежный баланс пользователя.
func (s *Store) GetBalance(_ context.Context, userID int64) (model.Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return model.Balance{}, model.ErrNotFound
	}
	available, withdrawn := s.money(userID)
	return model.Balance{Points: u.Points, Earnings: available, Withdrawn: withdrawn}, nil
}

func (s *Store) money(userID int64) (available, withdrawn decimal.Decimal) {
	earned := decimal.Zero
	for _, sale := range s.sales {
		if sale.UserID == userID {
			earned = earned.Add(sale.Earnings)
		}
	}
	withdrawn = decimal.Zero
	for _, w := range s.withdrawals {
		if w.UserID == userID && w.Status != model.WithdrawalRejected {
			withdrawn = withdrawn.Add(w.Amount)
		}
	}
	return earned.Sub(withdrawn), withdrawn
}

// GetCart возвращает корзину с актуальными данными призов. Отсутствующая корзина пуста и имеет версию 0.
func (s *Store) GetCart(_ context.Context, userID int64) (*cart.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[userID]; !ok {
		return nil, model.ErrNotFound
	}
	return s.loadCart(userID), nil
}

func (s *Store) loadCart(userID int64) *cart.Cart {
	c := cart.New(userID)
	st, ok := s.carts[userID]
	if !ok {
		return c
	}
	c.Version = st.version
	for _, l := range st.lines {
		p, ok := s.prizes[l.prizeID]
		if !ok {
			continue
		}
		c.Lines = append(c.Lines, cart.Line{
			PrizeID:     p.ID,
			Name:        p.Name,
			Description: p.Description,
			Cost:        p.Cost,
			Available:   p.Available,
			Quantity:    l.quantity,
		})
	}
	return c
}

// SaveCart сохраняет позиции корзины, если её версия не менялась с момента чтения.
func (s *Store) SaveCart(_ context.Context, c *cart.Cart) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.carts[c.UserID]
	if !ok {
		st = &cartState{}
	}
	if st.version != c.Version {
		return model.ErrConcurrencyConflict
	}

	lines := make([]cartLine, 0, len(c.Lines))
	for _, l := range c.Lines {
		lines = append(lines, cartLine{prizeID: l.PrizeID, quantity: l.Quantity})
	}
	st.lines = lines
	st.version++
	s.carts[c.UserID] = st
	c.Version = st.version
	return nil
}

// Checkout атомарно оформляет заказ: проверяет версию корзины, доступность призов и баланс,
// списывает баллы, сохраняет заказ и очищает корзину.
func (s *Store) Checkout(_ context.Context, cartVersion int64, o model.Order) (*model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[o.UserID]
	if !ok {
		return nil, model.ErrNotFound
	}
	st, ok := s.carts[o.UserID]
	if !ok || st.version != cartVersion {
		return nil, model.ErrConcurrencyConflict
	}
	for _, item := range o.Items {
		if p, ok := s.prizes[item.PrizeID]; !ok || !p.Available {
			return nil, model.ErrPrizeUnavailable
		}
	}
	if u.Points < o.TotalCost {
		return nil, model.ErrInsufficientPoints
	}
	for _, existing := range s.orders {
		if existing.Number == o.Number {
			return nil, model.ErrConcurrencyConflict
		}
	}

	o.ID = s.nextID()
	o.Version = 1
	orderID := o.ID
	s.appendLedger(u, model.LedgerEntry{
		UserID:      o.UserID,
		Type:        model.LedgerSpent,
		Amount:      o.TotalCost,
		Description: "order " + o.Number,
		OrderID:     &orderID,
		CreatedAt:   o.CreatedAt,
	})

	stored := cloneOrder(o)
	s.orders[o.ID] = &stored

	st.lines = nil
	st.version++

	res := cloneOrder(o)
	return &res, nil
}

func cloneOrder(o model.Order) model.Order {
	o.Items = append([]model.OrderItem(nil), o.Items...)
	o.History = append([]model.StatusHistoryEntry(nil), o.History...)
	return o
}

// GetOrderByNumber возвращает заказ по номеру.
func (s *Store) GetOrderByNumber(_ context.Context, number string) (*model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, o := range s.orders {
		if o.Number == number {
			res := cloneOrder(*o)
			return &res, nil
		}
	}
	return nil, model.ErrNotFound
}

// ListOrdersByUser возвращает заказы пользователя, новые первыми.
func (s *Store) ListOrdersByUser(_ context.Context, userID int64) ([]model.Order, error) {
	return s.filterOrders(func(o *model.Order) bool { return o.UserID == userID }), nil
}

// ListOrders возвращает заказы в статусе status или все заказы, если статус пуст.
func (s *Store) ListOrders(_ context.Context, status model.OrderStatus) ([]model.Order, error) {
	return s.filterOrders(func(o *model.Order) bool { return status == "" || o.Status == status }), nil
}

// ListStaleOrders возвращает заказы в статусе status, созданные раньше before.
func (s *Store) ListStaleOrders(_ context.Context, status model.OrderStatus, before time.Time, limit int) ([]model.Order, error) {
	res := s.filterOrders(func(o *model.Order) bool { return o.Status == status && o.CreatedAt.Before(before) })
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.Before(res[j].CreatedAt) })
	if len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

func (s *Store) filterOrders(keep func(o *model.Order) bool) []model.Order {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res []model.Order
	for _, o := range s.orders {
		if keep(o) {
			res = append(res, cloneOrder(*o))
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if !res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].CreatedAt.After(res[j].CreatedAt)
		}
		return res[i].ID > res[j].ID
	})
	return res
}

// UpdateOrderStatus применяет смену статуса, если версия заказа совпадает с ожидаемой.
// Возврат баллов при отмене выполняется в той же операции.
func (s *Store) UpdateOrderStatus(_ context.Context, change model.StatusChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[change.OrderID]
	if !ok {
		return model.ErrNotFound
	}
	if o.Version != change.ExpectedVersion {
		return model.ErrConcurrencyConflict
	}

	if change.Refund != nil {
		u, ok := s.users[o.UserID]
		if !ok {
			return model.ErrNotFound
		}
		s.appendLedger(u, *change.Refund)
	}

	orderflow.Apply(o, change)
	return nil
}

// UpdateDelivery меняет адрес и комментарий заказа, если версия заказа совпадает с ожидаемой.
func (s *Store) UpdateDelivery(_ context.Context, upd model.DeliveryUpdate, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[upd.OrderID]
	if !ok {
		return model.ErrNotFound
	}
	if o.Version != upd.ExpectedVersion {
		return model.ErrConcurrencyConflict
	}
	o.DeliveryAddress = upd.Address
	o.Notes = upd.Notes
	o.UpdatedAt = now
	o.Version++
	return nil
}

// CreateWithdrawal под блокировкой пользователя вычисляет доступный баланс и передаёт его в build,
// который проверяет заявку. Созданная заявка сразу уменьшает доступный баланс.
func (s *Store) CreateWithdrawal(_ context.Context, userID int64, build func(available decimal.Decimal) (model.WithdrawalRequest, error)) (*model.WithdrawalRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[userID]; !ok {
		return nil, model.ErrNotFound
	}

	available, _ := s.money(userID)
	w, err := build(available)
	if err != nil {
		return nil, err
	}
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	w.UserID = userID

	s.withdrawals = append(s.withdrawals, &w)
	res := w
	return &res, nil
}

// ListWithdrawals возвращает заявки пользователя, новые первыми.
func (s *Store) ListWithdrawals(_ context.Context, userID int64) ([]model.WithdrawalRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res []model.WithdrawalRequest
	for i := len(s.withdrawals) - 1; i >= 0; i-- {
		if s.withdrawals[i].UserID == userID {
			res = append(res, *s.withdrawals[i])
		}
	}
	return res, nil
}

// ListWithdrawalsByStatus возвращает заявки в статусе status, старые первыми.
func (s *Store) ListWithdrawalsByStatus(_ context.Context, status model.WithdrawalStatus, limit int) ([]model.WithdrawalRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res []model.WithdrawalRequest
	for _, w := range s.withdrawals {
		if w.Status == status {
			res = append(res, *w)
			if len(res) == limit {
				break
			}
		}
	}
	return res, nil
}

// SetWithdrawalStatus переводит заявку из статуса from в статус to.
func (s *Store) SetWithdrawalStatus(_ context.Context, id uuid.UUID, from, to model.WithdrawalStatus, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, w := range s.withdrawals {
		if w.ID != id {
			continue
		}
		if w.Status != from {
			return model.ErrInvalidTransition
		}
		w.Status = to
		w.UpdatedAt = now
		return nil
	}
	return model.ErrNotFound
}

// LeaderboardRows суммирует баллы, заработанные пользователями начиная с since.
// Учитываются начисления за продажи, бонусы и штрафы.
func (s *Store) LeaderboardRows(_ context.Context, since time.Time) ([]model.LeaderboardRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	points := make(map[int64]int64)
	for _, e := range s.ledger {
		if e.CreatedAt.Before(since) {
			continue
		}
		switch e.Type {
		case model.LedgerEarned, model.LedgerBonus, model.LedgerPenalty:
			points[e.UserID] += e.Signed()
		}
	}

	rows := make([]model.LeaderboardRow, 0, len(s.users))
	for _, u := range s.users {
		if !u.Active {
			continue
		}
		row := model.LeaderboardRow{
			UserID:      u.ID,
			DisplayName: u.DisplayName,
			Role:        u.Role,
			CreatedAt:   u.CreatedAt,
			Points:      points[u.ID],
		}
		if u.BarID != nil {
			row.BarName = s.bars[*u.BarID].name
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// UserStats собирает агрегаты активности пользователя.
func (s *Store) UserStats(_ context.Context, userID int64) (model.UserStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var st model.UserStats
	products := make(map[int64]struct{})
	for _, sale := range s.sales {
		if sale.UserID != userID {
			continue
		}
		st.SalesCount++
		st.PortionsSold += int64(sale.Quantity)
		st.PointsEarned += sale.Points
		products[sale.ProductID] = struct{}{}
	}
	st.DistinctProducts = int64(len(products))
	for _, o := range s.orders {
		if o.UserID == userID && o.Status != model.OrderStatusCancelled {
			st.OrdersPlaced++
		}
	}
	return st, nil
}

// ListAchievementUnlocks возвращает сохранённые моменты открытия достижений.
func (s *Store) ListAchievementUnlocks(_ context.Context, userID int64) (map[string]time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := make(map[string]time.Time)
	for _, u := range s.unlocks[userID] {
		res[u.code] = u.at
	}
	return res, nil
}

// SaveAchievementUnlocks сохраняет новые открытия. Уже сохранённые не перезаписываются.
func (s *Store) SaveAchievementUnlocks(_ context.Context, userID int64, unlocks map[string]time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := make(map[string]bool)
	for _, u := range s.unlocks[userID] {
		existing[u.code] = true
	}
	for code, at := range unlocks {
		if !existing[code] {
			s.unlocks[userID] = append(s.unlocks[userID], unlock{code: code, at: at})
		}
	}
	return nil
}

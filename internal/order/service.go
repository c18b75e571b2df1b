package order

import (
	"context"
	"errors"

	"restohub-be/internal/logger"
	"restohub-be/internal/product"
	"restohub-be/internal/realtime"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Service interface {
	ListOrders(ctx context.Context, restaurantID int64, filter ListFilter) ([]*Order, error)
	GetOrder(ctx context.Context, restaurantID, orderID int64) (*Order, error)
	CreateOrder(ctx context.Context, restaurantID int64, input CreateOrderInput) (*Order, error)
	AddItems(ctx context.Context, restaurantID, orderID int64, products []ProductLine) (*Order, error)
	UpdateItemStatus(ctx context.Context, restaurantID, itemID int64, update ItemStatusUpdate) (*OrderItem, error)
	UpdateOrder(ctx context.Context, restaurantID, orderID int64, patch Patch) (*Order, error)
	DeleteOrder(ctx context.Context, restaurantID, orderID int64) error
}

type service struct {
	repo     Repository
	products product.Repository
	notifier realtime.Publisher
}

func NewService(repo Repository, products product.Repository, notifier realtime.Publisher) Service {
	if notifier == nil {
		notifier = realtime.Nop{}
	}
	return &service{
		repo:     repo,
		products: products,
		notifier: notifier,
	}
}

func requireTenant(op string, restaurantID int64) error {
	if restaurantID <= 0 {
		return newError(KindValidation, op, ErrTenantRequired)
	}
	return nil
}

func checkVersion(op string, expected *int64, actual int64) error {
	if expected != nil && *expected != actual {
		return newError(KindConflict, op, ErrStaleVersion)
	}
	return nil
}

func (s *service) ListOrders(ctx context.Context, restaurantID int64, filter ListFilter) ([]*Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "ListOrders"),
	)

	if err := requireTenant("list orders", restaurantID); err != nil {
		return nil, err
	}
	for _, st := range filter.Statuses {
		if !st.Valid() {
			return nil, newError(KindValidation, "list orders", ErrInvalidStatus)
		}
	}

	orders, err := s.repo.ListOrders(ctx, restaurantID, filter)
	if err != nil {
		log.Error("failed to list orders", zap.Error(err))
		return nil, err
	}

	log.Debug("ListOrders success", zap.Int("count", len(orders)))
	return orders, nil
}

func (s *service) GetOrder(ctx context.Context, restaurantID, orderID int64) (*Order, error) {
	if err := requireTenant("get order", restaurantID); err != nil {
		return nil, err
	}

	o, err := s.repo.GetOrder(ctx, restaurantID, orderID)
	if err != nil {
		if KindOf(err) == KindStorage {
			logger.FromCtx(ctx).Error("failed to get order",
				zap.String("layer", "service"),
				zap.Int64("order_id", orderID),
				zap.Error(err),
			)
		}
		return nil, err
	}
	return o, nil
}

func (s *service) CreateOrder(ctx context.Context, restaurantID int64, input CreateOrderInput) (*Order, error) {
	const op = "create order"
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "CreateOrder"),
	)
	log.Info("CreateOrder started", zap.Int("products", len(input.Products)))

	if err := requireTenant(op, restaurantID); err != nil {
		return nil, err
	}

	// 1. Table and waiter must belong to the restaurant
	if err := s.checkTable(ctx, op, restaurantID, input.TableID); err != nil {
		return nil, err
	}
	if err := s.checkWaiter(ctx, op, restaurantID, input.WaiterID); err != nil {
		return nil, err
	}

	// 2. Price items from the catalog
	items, total, err := s.buildItems(ctx, op, restaurantID, input.Products)
	if err != nil {
		log.Warn("failed to build items", zap.Error(err))
		return nil, err
	}

	o := &Order{
		RestaurantID: restaurantID,
		TableID:      input.TableID,
		WaiterID:     input.WaiterID,
		Status:       StatusOpen,
		TotalAmount:  total,
		Items:        items,
	}

	// 3. Persist order and items together
	if err := s.repo.CreateOrder(ctx, o); err != nil {
		log.Error("failed to create order", zap.Error(err))
		return nil, err
	}

	s.notifier.Publish(ctx, realtime.NewEvent(realtime.EventNewOrder, restaurantID, o))

	log.Info("CreateOrder success",
		zap.Int64("order_id", o.ID),
		zap.String("total", o.TotalAmount.StringFixed(2)),
	)
	return o, nil
}

func (s *service) AddItems(ctx context.Context, restaurantID, orderID int64, products []ProductLine) (*Order, error) {
	const op = "add items"
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "AddItems"),
		zap.Int64("order_id", orderID),
	)

	if err := requireTenant(op, restaurantID); err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, newError(KindValidation, op, ErrNoProducts)
	}

	// Catalog snapshot is taken before the order is locked.
	items, added, err := s.buildItems(ctx, op, restaurantID, products)
	if err != nil {
		log.Warn("failed to build items", zap.Error(err))
		return nil, err
	}

	o, err := s.repo.MutateOrder(ctx, restaurantID, orderID, func(o *Order) error {
		if o.Status.Terminal() {
			return newError(KindConflict, op, ErrOrderClosed)
		}
		o.Items = append(o.Items, items...)
		o.TotalAmount = o.TotalAmount.Add(added)
		o.Status = DeriveStatus(o.Status, o.ItemStatuses())
		return nil
	})
	if err != nil {
		logFailure(log, "failed to add items", err)
		return nil, err
	}

	s.notifier.Publish(ctx, realtime.NewEvent(realtime.EventOrderUpdated, restaurantID, o))

	log.Info("AddItems success",
		zap.Int("added", len(items)),
		zap.String("status", string(o.Status)),
	)
	return o, nil
}

func (s *service) UpdateItemStatus(ctx context.Context, restaurantID, itemID int64, update ItemStatusUpdate) (*OrderItem, error) {
	const op = "update item status"
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "UpdateItemStatus"),
		zap.Int64("item_id", itemID),
	)

	if err := requireTenant(op, restaurantID); err != nil {
		return nil, err
	}
	if !update.Status.Valid() {
		return nil, newError(KindValidation, op, ErrInvalidStatus)
	}

	var prev OrderStatus
	o, item, err := s.repo.MutateItem(ctx, restaurantID, itemID, func(o *Order, it *OrderItem) error {
		if err := checkVersion(op, update.Version, it.Version); err != nil {
			return err
		}
		prev = o.Status
		it.Status = update.Status
		o.Status = DeriveStatus(o.Status, o.ItemStatuses())
		return nil
	})
	if err != nil {
		logFailure(log, "failed to update item status", err)
		return nil, err
	}

	s.notifier.Publish(ctx, realtime.NewEvent(realtime.EventItemUpdated, restaurantID, item))
	if o.Status != prev {
		s.notifier.Publish(ctx, realtime.NewEvent(realtime.EventOrderUpdated, restaurantID, o))
	}

	log.Info("UpdateItemStatus success",
		zap.String("status", string(item.Status)),
		zap.String("order_status", string(o.Status)),
	)
	return item, nil
}

func (s *service) UpdateOrder(ctx context.Context, restaurantID, orderID int64, patch Patch) (*Order, error) {
	const op = "update order"
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "UpdateOrder"),
		zap.Int64("order_id", orderID),
	)

	if err := requireTenant(op, restaurantID); err != nil {
		return nil, err
	}
	if patch.Empty() {
		return nil, newError(KindValidation, op, ErrEmptyPatch)
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return nil, newError(KindValidation, op, ErrInvalidStatus)
	}
	if patch.TableID.Set {
		if err := s.checkTable(ctx, op, restaurantID, patch.TableID.Value); err != nil {
			return nil, err
		}
	}
	if patch.WaiterID.Set {
		if err := s.checkWaiter(ctx, op, restaurantID, patch.WaiterID.Value); err != nil {
			return nil, err
		}
	}

	o, err := s.repo.MutateOrder(ctx, restaurantID, orderID, func(o *Order) error {
		if err := checkVersion(op, patch.Version, o.Version); err != nil {
			return err
		}
		if o.Status.Terminal() && (patch.TableID.Set || patch.WaiterID.Set) {
			return newError(KindConflict, op, ErrOrderClosed)
		}
		if patch.Status != nil {
			if !o.Status.CanTransitionTo(*patch.Status) {
				return newError(KindConflict, op, ErrInvalidTransition)
			}
			o.Status = *patch.Status
		}
		if patch.TableID.Set {
			o.TableID = patch.TableID.Value
		}
		if patch.WaiterID.Set {
			o.WaiterID = patch.WaiterID.Value
		}
		return nil
	})
	if err != nil {
		logFailure(log, "failed to update order", err)
		return nil, err
	}

	s.notifier.Publish(ctx, realtime.NewEvent(realtime.EventOrderUpdated, restaurantID, o))

	log.Info("UpdateOrder success", zap.String("status", string(o.Status)))
	return o, nil
}

func (s *service) DeleteOrder(ctx context.Context, restaurantID, orderID int64) error {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "DeleteOrder"),
		zap.Int64("order_id", orderID),
	)

	if err := requireTenant("delete order", restaurantID); err != nil {
		return err
	}

	if err := s.repo.DeleteOrder(ctx, restaurantID, orderID); err != nil {
		logFailure(log, "failed to delete order", err)
		return err
	}

	s.notifier.Publish(ctx, realtime.NewEvent(realtime.EventOrderDeleted, restaurantID, map[string]int64{"id": orderID}))

	log.Info("DeleteOrder success")
	return nil
}

// buildItems turns requested product lines into new items priced from the
// restaurant's catalog. Quantity 0 means 1.
func (s *service) buildItems(
	ctx context.Context,
	op string,
	restaurantID int64,
	lines []ProductLine,
) ([]*OrderItem, decimal.Decimal, error) {

	total := decimal.Zero
	if len(lines) == 0 {
		return []*OrderItem{}, total, nil
	}

	ids := make([]int64, 0, len(lines))
	for _, l := range lines {
		if l.Quantity < 0 || l.Quantity > MaxQuantity {
			return nil, total, newError(KindValidation, op, ErrInvalidQuantity)
		}
		ids = append(ids, l.ID)
	}

	catalog, err := s.products.GetByIDs(ctx, restaurantID, ids)
	if err != nil {
		return nil, total, newError(KindStorage, op, err)
	}

	items := make([]*OrderItem, 0, len(lines))
	for _, l := range lines {
		p, ok := catalog[l.ID]
		if !ok {
			return nil, total, newError(KindNotFound, op, ErrProductNotFound)
		}

		qty := l.Quantity
		if qty == 0 {
			qty = 1
		}

		productID := p.ID
		it := &OrderItem{
			RestaurantID: restaurantID,
			ProductID:    &productID,
			Quantity:     qty,
			Price:        p.Price,
			Status:       InitialItemStatus(p.RequiresProduction),
			Product:      p,
		}
		total = total.Add(it.Subtotal())
		items = append(items, it)
	}

	return items, total, nil
}

func (s *service) checkTable(ctx context.Context, op string, restaurantID int64, tableID *int64) error {
	if tableID == nil {
		return nil
	}
	ok, err := s.repo.TableExists(ctx, restaurantID, *tableID)
	if err != nil {
		return err
	}
	if !ok {
		return newError(KindNotFound, op, ErrTableNotFound)
	}
	return nil
}

func (s *service) checkWaiter(ctx context.Context, op string, restaurantID int64, waiterID *int64) error {
	if waiterID == nil {
		return nil
	}
	ok, err := s.repo.WaiterExists(ctx, restaurantID, *waiterID)
	if err != nil {
		return err
	}
	if !ok {
		return newError(KindNotFound, op, ErrWaiterNotFound)
	}
	return nil
}

// logFailure logs storage failures as errors and caller mistakes as warnings.
func logFailure(log *zap.Logger, msg string, err error) {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindStorage {
		log.Warn(msg, zap.String("kind", e.Kind.String()), zap.Error(err))
		return
	}
	log.Error(msg, zap.Error(err))
}

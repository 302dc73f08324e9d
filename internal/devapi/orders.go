package devapi

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"

	"github.com/and161185/agrimarket/internal/model"
)

var validPayment = map[string]bool{"credit_card": true, "bank_transfer": true}

var validOrderStatus = map[string]bool{
	model.OrderPending: true, model.OrderProcessing: true, model.OrderShipped: true,
	model.OrderCompleted: true, model.OrderCancelled: true, "refunded_order": true,
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var p model.OrderPayload
	if err := decodeJSON(r, &p); err != nil {
		writeDetail(w, http.StatusBadRequest, "malformed body")
		return
	}
	fields := map[string][]string{}
	required := func(k, v string) {
		if strings.TrimSpace(v) == "" {
			fields[k] = []string{"This field is required."}
		}
	}
	required("shipping_full_name", p.FullName)
	required("shipping_postal_code", p.PostalCode)
	required("shipping_prefecture", p.Prefecture)
	required("shipping_city", p.City)
	required("shipping_address1", p.Address1)
	required("shipping_phone_number", p.PhoneNumber)
	if !validPayment[p.PaymentMethod] {
		fields["payment_method"] = []string{fmt.Sprintf("%q is not a valid choice.", p.PaymentMethod)}
	}
	if len(p.Items) == 0 {
		fields["items"] = []string{"This list may not be empty."}
	}
	if len(fields) > 0 {
		writeFields(w, fields)
		return
	}

	uid, _ := UserIDFromCtx(r.Context())
	orderID, err := uuid.NewV4()
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "internal")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	total := decimal.Zero
	items := make([]model.OrderItem, 0, len(p.Items))
	for _, it := range p.Items {
		prod, ok := s.products[it.ProductID]
		if !ok || prod.Status != model.ProductActive {
			writeFields(w, map[string][]string{"items": {fmt.Sprintf("Invalid product id %d.", it.ProductID)}})
			return
		}
		if it.Quantity < 1 {
			writeFields(w, map[string][]string{"items": {"Ensure quantity is greater than or equal to 1."}})
			return
		}
		stock, _ := decimal.NewFromString(prod.Quantity)
		if stock.LessThan(decimal.NewFromInt(int64(it.Quantity))) {
			writeJSON(w, http.StatusBadRequest, []string{fmt.Sprintf("Insufficient stock for %s.", prod.Name)})
			return
		}
		price, _ := decimal.NewFromString(prod.Price)
		total = total.Add(price.Mul(decimal.NewFromInt(int64(it.Quantity))))
		items = append(items, model.OrderItem{
			ID:              s.nextID(),
			ProductID:       prod.ID,
			ProductName:     prod.Name,
			Quantity:        it.Quantity,
			PriceAtPurchase: prod.Price,
		})
	}

	now := s.now()
	o := &orderRow{
		Order: model.Order{
			ID:            s.nextID(),
			OrderID:       orderID.String(),
			UserUsername:  s.users[uid].Username,
			Shipping:      p.Shipping,
			TotalAmount:   total.StringFixed(2),
			PaymentMethod: p.PaymentMethod,
			PaymentStatus: "pending_payment",
			OrderStatus:   model.OrderPending,
			Notes:         p.Notes,
			Items:         items,
			CreatedAt:     now,
			UpdatedAt:     now,
		},
		userID: uid,
	}
	s.orders = append(s.orders, o)
	writeJSON(w, http.StatusCreated, o.Order)
}

func (s *Server) handleMyOrders(w http.ResponseWriter, r *http.Request) {
	uid, _ := UserIDFromCtx(r.Context())
	s.mu.RLock()
	var out []model.Order
	for _, o := range s.orders {
		if o.userID == uid {
			out = append(out, o.Order)
		}
	}
	s.mu.RUnlock()
	sortOrders(out, r.URL.Query().Get("ordering"))
	writeJSON(w, http.StatusOK, paginate(r, out))
}

func (s *Server) handleMyOrder(w http.ResponseWriter, r *http.Request) {
	uid, _ := UserIDFromCtx(r.Context())
	orderID := chi.URLParam(r, "orderId")
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, o := range s.orders {
		if o.OrderID == orderID && o.userID == uid {
			writeJSON(w, http.StatusOK, o.Order)
			return
		}
	}
	writeDetail(w, http.StatusNotFound, "Not found.")
}

// producerOrders returns orders containing at least one product of username. Caller holds s.mu.
func (s *Server) producerOrders(username string) []*orderRow {
	var out []*orderRow
	for _, o := range s.orders {
		for _, it := range o.Items {
			if p, ok := s.products[it.ProductID]; ok && p.ProducerUsername == username {
				out = append(out, o)
				break
			}
		}
	}
	return out
}

// producer returns the username of the authenticated user if they are a producer.
func (s *Server) producer(w http.ResponseWriter, r *http.Request) (string, bool) {
	uid, _ := UserIDFromCtx(r.Context())
	s.mu.RLock()
	acc := s.users[uid]
	s.mu.RUnlock()
	if !acc.IsProducer {
		writeDetail(w, http.StatusForbidden, "You do not have permission to perform this action.")
		return "", false
	}
	return acc.Username, true
}

func (s *Server) handleProducerOrders(w http.ResponseWriter, r *http.Request) {
	name, ok := s.producer(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	status := q.Get("order_status")
	search := strings.ToLower(q.Get("search"))

	s.mu.RLock()
	var out []model.Order
	for _, o := range s.producerOrders(name) {
		if status != "" && o.OrderStatus != status {
			continue
		}
		if search != "" && !orderMatches(o.Order, search) {
			continue
		}
		out = append(out, o.Order)
	}
	s.mu.RUnlock()

	sortOrders(out, q.Get("ordering"))
	writeJSON(w, http.StatusOK, paginate(r, out))
}

func orderMatches(o model.Order, search string) bool {
	if strings.Contains(strings.ToLower(o.OrderID), search) ||
		strings.Contains(strings.ToLower(o.UserUsername), search) ||
		strings.Contains(strings.ToLower(o.FullName), search) {
		return true
	}
	for _, it := range o.Items {
		if strings.Contains(strings.ToLower(it.ProductName), search) {
			return true
		}
	}
	return false
}

func (s *Server) handleProducerOrder(w http.ResponseWriter, r *http.Request) {
	s.withProducerOrder(w, r, func(o *orderRow) (int, any) { return http.StatusOK, o.Order })
}

func (s *Server) handleUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		OrderStatus string `json:"order_status"`
	}
	if err := decodeJSON(r, &body); err != nil || body.OrderStatus == "" {
		writeDetail(w, http.StatusBadRequest, "order_status is required.")
		return
	}
	s.withProducerOrder(w, r, func(o *orderRow) (int, any) {
		if !validOrderStatus[body.OrderStatus] {
			return http.StatusBadRequest, map[string][]string{"order_status": {"Invalid status."}}
		}
		o.OrderStatus = body.OrderStatus
		o.UpdatedAt = s.now()
		return http.StatusOK, o.Order
	})
}

func (s *Server) handleMarkShipped(w http.ResponseWriter, r *http.Request) {
	s.withProducerOrder(w, r, func(o *orderRow) (int, any) {
		switch o.OrderStatus {
		case model.OrderShipped:
			return http.StatusBadRequest, map[string]string{"detail": "This order has already been shipped."}
		case model.OrderCompleted, model.OrderCancelled:
			return http.StatusBadRequest, map[string]string{"detail": "Completed or cancelled orders cannot change status."}
		}
		o.OrderStatus = model.OrderShipped
		o.UpdatedAt = s.now()
		return http.StatusOK, o.Order
	})
}

func (s *Server) withProducerOrder(w http.ResponseWriter, r *http.Request, fn func(*orderRow) (int, any)) {
	name, ok := s.producer(w, r)
	if !ok {
		return
	}
	orderID := chi.URLParam(r, "orderId")

	s.mu.Lock()
	var target *orderRow
	for _, o := range s.producerOrders(name) {
		if o.OrderID == orderID {
			target = o
			break
		}
	}
	if target == nil {
		s.mu.Unlock()
		writeDetail(w, http.StatusNotFound, "Not found.")
		return
	}
	status, body := fn(target)
	s.mu.Unlock()
	writeJSON(w, status, body)
}

func sortOrders(orders []model.Order, ordering string) {
	if ordering == "" {
		ordering = "-created_at"
	}
	desc := strings.HasPrefix(ordering, "-")
	field := strings.TrimPrefix(ordering, "-")
	less := func(a, b model.Order) bool {
		switch field {
		case "total_amount":
			ta, _ := decimal.NewFromString(a.TotalAmount)
			tb, _ := decimal.NewFromString(b.TotalAmount)
			if !ta.Equal(tb) {
				return ta.LessThan(tb)
			}
		case "order_status":
			if a.OrderStatus != b.OrderStatus {
				return a.OrderStatus < b.OrderStatus
			}
		default:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
		}
		return a.ID < b.ID
	}
	sort.SliceStable(orders, func(i, j int) bool {
		if desc {
			return less(orders[j], orders[i])
		}
		return less(orders[i], orders[j])
	})
}

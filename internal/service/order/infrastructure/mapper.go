// internal/service/order/infrastructure/mapper.go
package infrastructure

import "tally/internal/service/order/domain"

func toOrderModel(o *domain.Order) *OrderModel {
	items := make([]OrderItemModel, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, OrderItemModel{
			OrderID:   o.ID,
			ProductID: it.ProductID,
			Name:      it.Name,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
		})
	}
	return &OrderModel{
		ID:             o.ID,
		UserID:         o.UserID,
		CouponCode:     o.CouponCode,
		CouponDiscount: o.CouponDiscount,
		UsedPoints:     o.UsedPoints,
		Subtotal:       o.Subtotal,
		Payable:        o.Payable,
		Status:         string(o.Status),
		PaymentRef:     o.PaymentRef,
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
		Items:          items,
	}
}

func toDomainOrder(m *OrderModel) *domain.Order {
	items := make([]domain.OrderItem, 0, len(m.Items))
	for _, it := range m.Items {
		items = append(items, domain.OrderItem{
			ProductID: it.ProductID,
			Name:      it.Name,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
		})
	}
	return &domain.Order{
		ID:             m.ID,
		UserID:         m.UserID,
		Items:          items,
		CouponCode:     m.CouponCode,
		CouponDiscount: m.CouponDiscount,
		UsedPoints:     m.UsedPoints,
		Subtotal:       m.Subtotal,
		Payable:        m.Payable,
		Status:         domain.Status(m.Status),
		PaymentRef:     m.PaymentRef,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func toOutboxModel(msg *domain.OutboxMessage) *OutboxMessageModel {
	return &OutboxMessageModel{
		Topic:   msg.Topic,
		Key:     msg.Key,
		Payload: msg.Payload,
	}
}

func toDomainOutbox(m *OutboxMessageModel) *domain.OutboxMessage {
	return &domain.OutboxMessage{
		ID:         m.ID,
		Topic:      m.Topic,
		Key:        m.Key,
		Payload:    m.Payload,
		CreatedAt:  m.CreatedAt,
		Dispatched: m.Dispatched,
	}
}

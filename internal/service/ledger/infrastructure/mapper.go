// internal/service/ledger/infrastructure/mapper.go
package infrastructure

import (
	"database/sql"

	"tally/internal/service/ledger/domain"
)

func toDomainStock(m *StockEntryModel) *domain.StockEntry {
	if m == nil {
		return nil
	}
	return &domain.StockEntry{
		ProductID: m.ProductID,
		Quantity:  m.Quantity,
		Version:   m.Version,
		UpdatedAt: m.UpdatedAt,
	}
}

func toDomainPoints(m *PointBalanceModel) *domain.PointBalance {
	if m == nil {
		return nil
	}
	b := &domain.PointBalance{
		UserID:  m.UserID,
		Amount:  m.Amount,
		Version: m.Version,
	}
	if m.ExpiresAt.Valid {
		b.ExpiresAt = m.ExpiresAt.Time
	}
	return b
}

func toDomainCoupon(m *CouponReservationModel) *domain.CouponReservation {
	if m == nil {
		return nil
	}
	c := &domain.CouponReservation{
		ID:         m.ID,
		UserID:     m.UserID,
		CouponCode: m.CouponCode,
		TemplateID: m.TemplateID,
		Status:     m.Status,
		Version:    m.Version,
	}
	if m.ValidFrom.Valid {
		c.ValidFrom = m.ValidFrom.Time
	}
	if m.ValidTo.Valid {
		c.ValidTo = m.ValidTo.Time
	}
	if m.OrderID.Valid {
		c.OrderID = m.OrderID.String
	}
	return c
}

func couponOrderID(orderID string) sql.NullString {
	if orderID == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: orderID, Valid: true}
}

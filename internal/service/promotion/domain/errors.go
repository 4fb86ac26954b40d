// internal/service/promotion/domain/errors.go
package domain

import "errors"

var (
	// ErrTemplateNotFound 优惠模板不存在。
	ErrTemplateNotFound = errors.New("promotion: template not found")

	// ErrTemplateInactive 模板未上线或已下架。
	ErrTemplateInactive = errors.New("promotion: template not active")

	// ErrNotEligible 订单事实不满足模板的适用规则。
	ErrNotEligible = errors.New("promotion: order not eligible for template")

	// ErrBadRule 规则定义本身无法编译。
	ErrBadRule = errors.New("promotion: invalid rule definition")
)

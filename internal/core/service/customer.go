package service

import (
	"context"
	"fmt"

	"github.com/forteclube/forte-payments/internal/core/domain"
	"github.com/forteclube/forte-payments/internal/core/ports"
)

// ensureGatewayCustomer resolves the member's gateway customer id, calling
// the gateway only when the local mirror is empty. The mapping is persisted
// immediately after a successful call, before any other write, so a retry
// after a timeout or partial failure reuses the same customer instead of
// provisioning a duplicate.
func ensureGatewayCustomer(ctx context.Context, members ports.MemberRepository, gateway ports.PaymentGateway, member *domain.Member) (string, error) {
	if member.GatewayCustomerID != "" {
		return member.GatewayCustomerID, nil
	}

	customerID, err := gateway.CreateCustomer(ctx, domain.CustomerProfile{
		Name:     member.Name,
		Email:    member.Email,
		Document: member.Document,
	})
	if err != nil {
		return "", domain.NewServiceError(domain.ErrGatewayUnavailable,
			"failed to provision gateway customer", "GATEWAY_ERROR")
	}

	if err := members.SetGatewayCustomerID(ctx, member.ID, customerID); err != nil {
		return "", fmt.Errorf("persist gateway customer id: %w", err)
	}
	member.GatewayCustomerID = customerID
	return customerID, nil
}

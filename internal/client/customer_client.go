package client

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lendcore/loan-engine/internal/cache"
	"github.com/lendcore/loan-engine/internal/domain"
	"github.com/lendcore/loan-engine/internal/logger"
	"github.com/lendcore/loan-engine/internal/repository"
	customError "github.com/lendcore/loan-engine/pkg/errors"
)

const profileCacheTTL = 24 * time.Hour

// CustomerClient validates customers for the saga's first step. Every
// successful lookup refreshes a cached snapshot; when the customer store is
// down or its breaker is open, validation degrades to the snapshot instead
// of failing the whole loan application.
type CustomerClient struct {
	repo   repository.CustomerRepository
	cache  cache.Cache
	caller *Caller
}

func NewCustomerClient(repo repository.CustomerRepository, c cache.Cache, caller *Caller) *CustomerClient {
	return &CustomerClient{
		repo:   repo,
		cache:  c,
		caller: caller,
	}
}

// ValidateCustomer checks that the customer exists and is active.
func (cc *CustomerClient) ValidateCustomer(ctx context.Context, customerID string) (*domain.CustomerProfile, error) {
	var profile *domain.CustomerProfile

	err := cc.caller.Call(ctx, "validate_customer", func(ctx context.Context) error {
		p, err := cc.repo.GetProfile(ctx, customerID)
		if err != nil {
			return err
		}
		profile = p
		return nil
	})

	if err != nil {
		if customError.IsBusiness(err) {
			return nil, err
		}

		cached, cacheErr := cc.cachedProfile(ctx, customerID)
		if cacheErr != nil {
			return nil, fmt.Errorf("%w: %v", customError.ErrCollaboratorUnavailable, err)
		}

		logger.Get().Warn("customer store unavailable, validating from cached profile",
			zap.String("customer_id", customerID),
			zap.Error(err))
		profile = cached
	} else {
		cc.storeProfile(ctx, profile)
	}

	if !profile.Active {
		return nil, customError.WrapCustomerInactive(customerID)
	}

	return profile, nil
}

func (cc *CustomerClient) cachedProfile(ctx context.Context, customerID string) (*domain.CustomerProfile, error) {
	var profile domain.CustomerProfile
	if err := cc.cache.GetJSON(ctx, cache.CustomerProfileKey(customerID), &profile); err != nil {
		return nil, err
	}
	profile.Exists = true
	return &profile, nil
}

func (cc *CustomerClient) storeProfile(ctx context.Context, profile *domain.CustomerProfile) {
	err := cc.cache.SetJSON(ctx, cache.CustomerProfileKey(profile.CustomerID), profile, profileCacheTTL)
	if err != nil {
		logger.Get().Warn("failed to cache customer profile",
			zap.String("customer_id", profile.CustomerID),
			zap.Error(err))
	}
}

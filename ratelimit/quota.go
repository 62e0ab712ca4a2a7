/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"fmt"
	"time"
)

// Operations with built-in quotas.
const (
	OperationAIChatAssistant         = "ai-chat-assistant"
	OperationMarketInsightsGenerator = "market-insights-generator"
	OperationFinancialData           = "financial-data"
	OperationAIRiskRecommendations   = "ai-risk-recommendations"
	OperationConnectMT4Account       = "connect-mt4-account"
	OperationConnectMT5Account       = "connect-mt5-account"
)

// QuotaConfig describes how many calls of an operation a single user may make within a trailing window.
type QuotaConfig struct {
	Window      time.Duration `mapstructure:"window" json:"window" yaml:"window"`
	MaxRequests int           `mapstructure:"maxRequests" json:"maxRequests" yaml:"maxRequests"`
}

// Validate checks that the quota can be enforced.
func (q QuotaConfig) Validate() error {
	if q.Window <= 0 {
		return fmt.Errorf("window must be positive, got %s", q.Window)
	}
	if q.MaxRequests <= 0 {
		return fmt.Errorf("max requests must be positive, got %d", q.MaxRequests)
	}
	return nil
}

// DefaultQuota is applied to operations that have no quota of their own.
var DefaultQuota = QuotaConfig{Window: time.Minute, MaxRequests: 30}

// DefaultQuotas returns a copy of the built-in quota table.
func DefaultQuotas() map[string]QuotaConfig {
	return map[string]QuotaConfig{
		OperationAIChatAssistant:         {Window: time.Minute, MaxRequests: 20},
		OperationMarketInsightsGenerator: {Window: 5 * time.Minute, MaxRequests: 5},
		OperationFinancialData:           {Window: time.Minute, MaxRequests: 60},
		OperationAIRiskRecommendations:   {Window: time.Minute, MaxRequests: 10},
		OperationConnectMT4Account:       {Window: 5 * time.Minute, MaxRequests: 3},
		OperationConnectMT5Account:       {Window: 5 * time.Minute, MaxRequests: 3},
	}
}

// MergeQuotas returns the built-in quota table with the overrides applied on top of it.
func MergeQuotas(overrides map[string]QuotaConfig) (map[string]QuotaConfig, error) {
	quotas := DefaultQuotas()
	for op, q := range overrides {
		if err := q.Validate(); err != nil {
			return nil, fmt.Errorf("quota for operation %q: %w", op, err)
		}
		quotas[op] = q
	}
	return quotas, nil
}

package tools

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"ai-chatbot-be/internal/constant"
	"ai-chatbot-be/internal/pkg/logger"
)

// DispatchResult is a manual dispatch hit: the tool that fired and its raw
// output, before any model rephrasing.
type DispatchResult struct {
	ToolName string
	Result   string
}

// ManualDispatcher short-circuits the model loop for well-known intents by
// matching keyword groups against the raw message. Rules run in order; the
// first hit wins.
type ManualDispatcher struct {
	catalog *Catalog
	log     logger.ILogger
}

func NewManualDispatcher(catalog *Catalog, log logger.ILogger) *ManualDispatcher {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &ManualDispatcher{
		catalog: catalog,
		log:     log,
	}
}

var shippingAmountPattern = regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*(?:TL|tl|lira)?`)

const shippingEstimateNote = "\n\n_Not: Sipariş tutarınızı belirtirseniz kesin hesaplama yapabilirim._"

// TryDispatch checks the message against the rule set. A nil result with a
// nil error means no rule matched and the model loop should run instead. Tool
// failures are swallowed into the same outcome so a broken tool degrades to
// the normal flow.
func (d *ManualDispatcher) TryDispatch(ctx context.Context, message string) (*DispatchResult, error) {
	lower := strings.ToLower(message)

	containsAny := func(words ...string) bool {
		for _, w := range words {
			if strings.Contains(lower, w) {
				return true
			}
		}
		return false
	}

	// 1. Return policy
	if containsAny("iade", "iptal", "geri gönder") &&
		containsAny("politika", "süre", "kural", "nasıl", "nedir") {
		d.log.Info("dispatch", "return policy rule matched", nil)

		result, err := d.catalog.ReturnPolicyText(ctx)
		if err != nil {
			d.log.Error("dispatch", "return policy tool failed", map[string]interface{}{
				"error": err.Error(),
			})
			return nil, nil
		}
		return &DispatchResult{ToolName: "get_return_policy", Result: result}, nil
	}

	// 2. Payment methods
	if containsAny("ödeme", "taksit", "kredi kartı", "banka kartı", "havale") &&
		containsAny("yöntem", "seçenek", "nasıl", "hangi") {
		d.log.Info("dispatch", "payment methods rule matched", nil)

		result, err := d.catalog.PaymentMethodsText(ctx)
		if err != nil {
			d.log.Error("dispatch", "payment methods tool failed", map[string]interface{}{
				"error": err.Error(),
			})
			return nil, nil
		}
		return &DispatchResult{ToolName: "get_payment_methods", Result: result}, nil
	}

	// 3. Shipping cost
	if containsAny("kargo", "teslimat", "gönderim") &&
		containsAny("ücret", "fiyat", "kaç", "ne kadar") {
		if amount, ok := extractShippingAmount(message); ok {
			d.log.Info("dispatch", "shipping rule matched", map[string]interface{}{
				"amount": amount,
			})
			return &DispatchResult{
				ToolName: "calculate_shipping",
				Result:   d.catalog.ShippingText(amount),
			}, nil
		}

		// No amount in the message: answer with an example calculation.
		d.log.Info("dispatch", "shipping rule matched without amount", nil)
		return &DispatchResult{
			ToolName: "calculate_shipping",
			Result:   d.catalog.ShippingText(constant.DefaultShippingExampleAmount) + shippingEstimateNote,
		}, nil
	}

	return nil, nil
}

func extractShippingAmount(message string) (float64, bool) {
	m := shippingAmountPattern.FindStringSubmatch(message)
	if m == nil {
		return 0, false
	}
	amount, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
	if err != nil {
		return 0, false
	}
	return amount, true
}

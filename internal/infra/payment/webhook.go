package payment

import (
	"encoding/json"
	"errors"
	"fmt"

	"onlinestore/internal/usecase"

	"github.com/stripe/stripe-go/v76/webhook"
)

var ErrInvalidSignature = errors.New("invalid webhook signature")

// ParseWebhook は署名を検証して、イベントをPaymentEventにする。
func ParseWebhook(payload []byte, sigHeader string, secret string) (usecase.PaymentEvent, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, sigHeader, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return usecase.PaymentEvent{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	out := usecase.PaymentEvent{
		ID:       ev.ID,
		Type:     string(ev.Type),
		Metadata: map[string]string{},
	}

	// session / payment_intent どちらもmetadataを持つ
	if ev.Data != nil && len(ev.Data.Raw) > 0 {
		var obj struct {
			Metadata map[string]string `json:"metadata"`
		}
		if err := json.Unmarshal(ev.Data.Raw, &obj); err != nil {
			return usecase.PaymentEvent{}, fmt.Errorf("%w: %v", usecase.ErrMalformedPaymentEvent, err)
		}
		for k, v := range obj.Metadata {
			out.Metadata[k] = v
		}
	}
	return out, nil
}

package trigger

import (
	"github.com/nodeflow/nodeflow/pkg/models"
)

// Source is an external system that starts runs through a webhook.
type Source struct {
	Name     string
	NodeType models.NodeType
	Map      func(body map[string]any) models.Context
}

// Sources lists the webhook sources in route order.
func Sources() []Source {
	return []Source{
		{Name: "google-form", NodeType: models.NodeTypeGoogleFormTrigger, Map: GoogleFormContext},
		{Name: "stripe", NodeType: models.NodeTypePaymentTrigger, Map: StripeContext},
		{Name: "paypal", NodeType: models.NodeTypePayPalTrigger, Map: PayPalContext},
	}
}

// GoogleFormContext maps an Apps Script form submission onto the googleForm namespace.
func GoogleFormContext(body map[string]any) models.Context {
	return models.Context{
		"googleForm": map[string]any{
			"formID":          body["formID"],
			"formTitle":       body["formTitle"],
			"responseID":      body["responseID"],
			"timestamp":       body["timestamp"],
			"respondentEmail": body["respondentEmail"],
			"responses":       body["responses"],
			"raw":             body,
		},
	}
}

// StripeContext maps a Stripe event onto the stripe namespace. raw holds the event's
// data.object, the resource the event is about.
func StripeContext(body map[string]any) models.Context {
	var object any
	if data, ok := body["data"].(map[string]any); ok {
		object = data["object"]
	}

	return models.Context{
		"stripe": map[string]any{
			"eventId":   body["id"],
			"eventType": body["type"],
			"timeStamp": body["created"],
			"livemode":  body["livemode"],
			"raw":       object,
		},
	}
}

// PayPalContext maps a PayPal webhook event onto the paypal namespace.
func PayPalContext(body map[string]any) models.Context {
	return models.Context{
		"paypal": map[string]any{
			"eventId":   body["id"],
			"eventType": body["event_type"],
			"timeStamp": body["create_time"],
			"raw":       body,
		},
	}
}

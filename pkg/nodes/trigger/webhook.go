package trigger

// NewGoogleForm handles runs started by a Google Forms submission. The payload lives
// under googleForm in the initial context.
func NewGoogleForm() *Executor {
	return newExecutor("google-form-trigger", webhookSchema(
		"Starts the workflow when a Google Form is submitted",
		"googleForm",
		[]string{"formID", "formTitle", "responseID", "timestamp", "respondentEmail", "responses", "raw"},
	))
}

// NewStripe handles runs started by a Stripe event, found under stripe.
func NewStripe() *Executor {
	return newExecutor("payment-trigger", webhookSchema(
		"Starts the workflow when Stripe delivers an event",
		"stripe",
		[]string{"eventId", "eventType", "timeStamp", "livemode", "raw"},
	))
}

// NewPayPal handles runs started by a PayPal webhook event, found under paypal.
func NewPayPal() *Executor {
	return newExecutor("paypal-trigger", webhookSchema(
		"Starts the workflow when PayPal delivers a webhook event",
		"paypal",
		[]string{"eventId", "eventType", "timeStamp", "raw"},
	))
}

func webhookSchema(description, namespace string, fields []string) map[string]any {
	return map[string]any{
		"type":        "object",
		"description": description,
		"properties":  map[string]any{},
		"x-context": map[string]any{
			"namespace": namespace,
			"fields":    fields,
		},
	}
}

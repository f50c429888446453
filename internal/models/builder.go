package models

// Builder steps, in the order the bot walks through them.
const (
	StepSize     = "size"
	StepBase     = "base"
	StepProteins = "proteins"
	StepToppings = "toppings"
	StepSauce    = "sauce"
)

// Checkout stages for collecting delivery details and the final confirmation.
const (
	CheckoutStageMethod  = "method"  // delivery or pickup?
	CheckoutStageAddress = "address" // delivery address
	CheckoutStagePickup  = "pickup"  // pickup time
	CheckoutStageConfirm = "confirm" // final yes/no
)

// BuilderState is the step-by-step custom-bowl assembly in progress.
// Cleared when the builder completes or the user cancels.
type BuilderState struct {
	Step       string `json:"step"`
	SizeID     int    `json:"size_id,omitempty"`
	BaseID     int    `json:"base_id,omitempty"`
	ProteinIDs []int  `json:"protein_ids,omitempty"`
	ToppingIDs []int  `json:"topping_ids,omitempty"`
	SauceID    int    `json:"sauce_id,omitempty"`
}

// NewBuilderState starts a builder at the first step.
func NewBuilderState() *BuilderState {
	return &BuilderState{Step: StepSize}
}

// CheckoutState holds the items awaiting confirmation plus the delivery
// details collected so far. Cleared on completion or cancellation.
type CheckoutState struct {
	Stage          string      `json:"stage"`
	Items          []OrderItem `json:"items"`
	DeliveryMethod string      `json:"delivery_method,omitempty"`
	Address        string      `json:"address,omitempty"`
	PickupTime     string      `json:"pickup_time,omitempty"`
}

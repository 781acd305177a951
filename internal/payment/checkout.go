package payment

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"sync"

	"nextsteps-go/internal/clock"
	"nextsteps-go/internal/models"
)

type CustomField struct {
	DisplayName  string `json:"display_name"`
	VariableName string `json:"variable_name"`
	Value        string `json:"value"`
}

type Metadata struct {
	CustomFields []CustomField `json:"custom_fields"`
}

// Checkout holds the parameters the hosted checkout widget is opened with.
type Checkout struct {
	Key       string   `json:"key"`
	Email     string   `json:"email"`
	Amount    int64    `json:"amount"`
	Currency  string   `json:"currency"`
	Reference string   `json:"ref"`
	Metadata  Metadata `json:"metadata"`
}

type CheckoutRequest struct {
	Email       string  `json:"email"`
	Service     string  `json:"service"`
	CustomPrice float64 `json:"customPrice,omitempty"`
}

type Checkouts struct {
	publicKey string
	currency  string
	clock     clock.Clock

	mu  sync.Mutex
	rng *rand.Rand
}

func NewCheckouts(publicKey, currency string, clk clock.Clock) *Checkouts {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Checkouts{
		publicKey: publicKey,
		currency:  currency,
		clock:     clk,
		rng:       rand.New(rand.NewSource(clk.Now().UnixNano())),
	}
}

// New validates the request and returns checkout parameters with a fresh
// BRG_<unix-ms>_<n> reference.
func (c *Checkouts) New(req CheckoutRequest) (*Checkout, error) {
	if err := models.ValidateEmail(req.Email); err != nil {
		return nil, err
	}
	if c.publicKey == "" {
		return nil, ErrNotConfigured
	}

	label, price, err := c.price(req)
	if err != nil {
		return nil, err
	}

	return &Checkout{
		Key:       c.publicKey,
		Email:     strings.TrimSpace(req.Email),
		Amount:    int64(math.Round(price * 100)),
		Currency:  c.currency,
		Reference: c.reference(),
		Metadata: Metadata{CustomFields: []CustomField{
			{DisplayName: "Service Type", VariableName: "service_type", Value: label},
			{DisplayName: "Service Value", VariableName: "service_value", Value: req.Service},
		}},
	}, nil
}

func (c *Checkouts) price(req CheckoutRequest) (string, float64, error) {
	if req.Service == ServiceOther {
		if req.CustomPrice <= 0 {
			return "", 0, ErrInvalidCustomPrice
		}
		return customServiceLabel, req.CustomPrice, nil
	}

	svc, ok := LookupService(req.Service)
	if !ok {
		return "", 0, fmt.Errorf("%w: %q", ErrUnknownService, req.Service)
	}
	return svc.Label, svc.Price, nil
}

func (c *Checkouts) reference() string {
	c.mu.Lock()
	n := c.rng.Intn(1000000)
	c.mu.Unlock()
	return fmt.Sprintf("BRG_%d_%d", c.clock.Now().UnixMilli(), n)
}

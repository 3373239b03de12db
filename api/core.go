package api

import (
	"context"
	"fmt"
	"time"
)

// Country is a country the platform operates in.
type Country struct {
	ID        int       `json:"id"`
	Name      string    `json:"nom"`
	Code      string    `json:"code"`
	Prefix    string    `json:"indicatif"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// Network is a mobile-money network within a country.
type Network struct {
	ID        int       `json:"id"`
	Name      string    `json:"nom"`
	Code      string    `json:"code"`
	CountryID int       `json:"pays"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// Aggregator is a payment aggregator routing transactions to networks.
type Aggregator struct {
	ID       int    `json:"id"`
	Name     string `json:"nom"`
	Slug     string `json:"slug"`
	Priority int    `json:"priority"`
	IsActive bool   `json:"is_active"`
}

// Transaction is one mobile-money movement, read-only in the console.
type Transaction struct {
	ID        int       `json:"id"`
	Reference string    `json:"reference"`
	Type      string    `json:"type_trans"`
	Amount    string    `json:"montant"`
	Currency  string    `json:"devise"`
	Status    string    `json:"status"`
	Network   string    `json:"reseau"`
	Phone     string    `json:"numero_send"`
	CreatedAt time.Time `json:"created_at"`
}

func (c *Client) ListCountries(ctx context.Context, opts ListOptions) (*Page[Country], error) {
	return list[Country](ctx, c, "/core/countries/", opts)
}

func (c *Client) GetCountry(ctx context.Context, id int) (*Country, error) {
	var out Country
	if err := c.get(ctx, fmt.Sprintf("/core/countries/%d/", id), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListNetworks(ctx context.Context, opts ListOptions) (*Page[Network], error) {
	return list[Network](ctx, c, "/core/networks/", opts)
}

func (c *Client) GetNetwork(ctx context.Context, id int) (*Network, error) {
	var out Network
	if err := c.get(ctx, fmt.Sprintf("/core/networks/%d/", id), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetNetworkActive toggles a network on or off for new transactions.
func (c *Client) SetNetworkActive(ctx context.Context, id int, active bool) (*Network, error) {
	var out Network
	body := map[string]bool{"is_active": active}
	if err := c.patch(ctx, fmt.Sprintf("/core/networks/%d/", id), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListAggregators(ctx context.Context, opts ListOptions) (*Page[Aggregator], error) {
	return list[Aggregator](ctx, c, "/core/aggregators/", opts)
}

// SetAggregatorActive toggles routing through an aggregator.
func (c *Client) SetAggregatorActive(ctx context.Context, id int, active bool) (*Aggregator, error) {
	var out Aggregator
	body := map[string]bool{"is_active": active}
	if err := c.patch(ctx, fmt.Sprintf("/core/aggregators/%d/", id), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListTransactions(ctx context.Context, opts ListOptions) (*Page[Transaction], error) {
	return list[Transaction](ctx, c, "/core/transactions/", opts)
}

func (c *Client) GetTransaction(ctx context.Context, id int) (*Transaction, error) {
	var out Transaction
	if err := c.get(ctx, fmt.Sprintf("/core/transactions/%d/", id), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

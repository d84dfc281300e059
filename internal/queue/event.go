// Package queue defines message payloads exchanged over the message broker.
package queue

// TicketIssuedEvent is published once per completed issuance, after the
// tickets are committed. It carries enough information for downstream
// consumers to log, notify, or feed analytics without querying the
// primary database.
type TicketIssuedEvent struct {
	PaymentReference string   `json:"payment_reference"`
	Channel          string   `json:"channel"`
	Buyer            string   `json:"buyer"`
	Phone            string   `json:"phone"`
	EventID          uint64   `json:"event_id"`
	EventName        string   `json:"event_name"`
	CategoryName     string   `json:"category_name"`
	Quantity         uint32   `json:"quantity"`
	TotalAmount      uint64   `json:"total_amount"`
	TicketIDs        []string `json:"ticket_ids"`
	IssuedAt         string   `json:"issued_at"`
}

package core

import (
	"fmt"
	"strings"
	"time"
)

// Status is the audit outcome of an item. Values are the display strings
// written to exported reports.
type Status string

const (
	StatusPending           Status = "Pendente"
	StatusFound             Status = "Encontrado"
	StatusNotFound          Status = "Não Encontrado"
	StatusTransferRequested Status = "Transferência Solicitada"
	StatusDisposalRequested Status = "Desfazimento Solicitado"
)

// Statuses lists every status in display order.
var Statuses = []Status{
	StatusPending,
	StatusFound,
	StatusNotFound,
	StatusTransferRequested,
	StatusDisposalRequested,
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// ParseStatus accepts a display string, case-insensitively.
func ParseStatus(s string) (Status, error) {
	s = strings.TrimSpace(s)
	for _, known := range Statuses {
		if strings.EqualFold(s, string(known)) {
			return known, nil
		}
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// CSV column names used on import and export.
const (
	ColumnID                  = "nr_tombo"
	ColumnDescription         = "Descrica07"
	ColumnResponsible         = "nome"
	ColumnStatus              = "status"
	ColumnOriginalResponsible = "original_responsavel"
	ColumnCheckedAt           = "data_conferencia"
)

// ExportColumns is the fixed export column order:
// id, description, responsible, status, originalResponsible.
var ExportColumns = []string{
	ColumnID,
	ColumnDescription,
	ColumnResponsible,
	ColumnStatus,
	ColumnOriginalResponsible,
}

// NotAvailable is shown in place of empty optional fields.
const NotAvailable = "N/A"

// RawRecord is one parsed CSV data row keyed by header name.
type RawRecord map[string]string

// Item is a single patrimônio entry identified by its tombo.
type Item struct {
	ID                  string    `json:"id"`
	Description         string    `json:"description"`
	Responsible         string    `json:"responsible"`
	OriginalResponsible string    `json:"original_responsible"`
	Status              Status    `json:"status"`
	CheckedAt           time.Time `json:"checked_at,omitzero"`
}

// Processed reports whether an audit action has been applied to the item.
func (i Item) Processed() bool {
	return i.Status != StatusPending
}

// DisplayDescription returns the description or "N/A" when empty.
func (i Item) DisplayDescription() string {
	return orNotAvailable(i.Description)
}

// DisplayResponsible returns the responsible or "N/A" when empty.
func (i Item) DisplayResponsible() string {
	return orNotAvailable(i.Responsible)
}

func orNotAvailable(s string) string {
	if strings.TrimSpace(s) == "" {
		return NotAvailable
	}
	return s
}

// Counts summarizes the store by status.
type Counts struct {
	Total    int            `json:"total"`
	ByStatus map[Status]int `json:"by_status"`
}

// Of returns the number of items with the given status.
func (c Counts) Of(s Status) int {
	return c.ByStatus[s]
}

// Processed returns the number of items that left Pending.
func (c Counts) Processed() int {
	return c.Total - c.ByStatus[StatusPending]
}

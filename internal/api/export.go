package api

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/alcast-trading/rfq-engine/internal/rfq"
)

var exportHeader = []string{
	"quote_id", "counterparty_id", "counterparty_name", "quote_price",
	"price_type", "volume_mt", "valid_until", "channel", "status",
	"quote_group_id", "leg_side", "selected", "quoted_at",
}

// ExportQuotes streams the RFQ's quotes as a CSV attachment for the desk's
// spreadsheet workflow.
func (h *Handler) ExportQuotes(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "invalid rfq id")
	}
	r, err := h.service.GetRfq(c.Context(), id)
	if err != nil {
		return writeError(c, err)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(exportHeader); err != nil {
		return writeError(c, err)
	}
	for _, q := range r.Quotes {
		if err := w.Write(exportRow(q)); err != nil {
			return writeError(c, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return writeError(c, err)
	}

	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", fmt.Sprintf("rfq-%s-quotes.csv", r.RfqNumber)))
	return c.Send(buf.Bytes())
}

func exportRow(q rfq.Quote) []string {
	cpID := ""
	if q.CounterpartyID != nil {
		cpID = strconv.FormatInt(*q.CounterpartyID, 10)
	}
	volume := ""
	if q.VolumeMT != nil {
		volume = q.VolumeMT.String()
	}
	validUntil := ""
	if q.ValidUntil != nil {
		validUntil = q.ValidUntil.UTC().Format(time.RFC3339)
	}
	return []string{
		strconv.FormatInt(q.ID, 10),
		cpID,
		q.CounterpartyName,
		q.Price.String(),
		q.PriceType,
		volume,
		validUntil,
		q.Channel,
		q.Status,
		q.QuoteGroupID,
		q.LegSide,
		strconv.FormatBool(q.Selected),
		q.QuotedAt.UTC().Format(time.RFC3339),
	}
}

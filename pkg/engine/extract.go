package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/coldbrewlabs/engram/pkg/llm"
	"github.com/coldbrewlabs/engram/pkg/storage"
)

// extractSentinel is the reserved reply meaning "no structured update in
// this turn". Matched case-insensitively, exact.
const extractSentinel = "NO_UPDATE"

// domainPatch is the schema the extraction model must conform to. Unknown
// fields are rejected, not best-effort ignored.
type domainPatch struct {
	Customers   []customerPatch `json:"customers"`
	SalesOrders []orderPatch    `json:"sales_orders"`
}

type customerPatch struct {
	Name     string `json:"name"`
	Industry string `json:"industry"`
}

type orderPatch struct {
	CustomerName string `json:"customer_name"`
	Title        string `json:"title"`
	Status       string `json:"status"`
}

func (p domainPatch) empty() bool {
	return len(p.Customers) == 0 && len(p.SalesOrders) == 0
}

// ExtractResult reports one extraction pass.
type ExtractResult struct {
	Outcome       Outcome
	Customers     int
	Orders        int
	SkippedOrders int
}

// ExtractDomainFacts asks the model for a structured patch of new business
// entities mentioned in the turn and merges it into the domain store.
//
// Malformed output is applied as "no update", never raised. Writes within
// one pass are applied together without cross-entity rollback: each write
// is independently idempotent, so a partial pass re-runs cleanly.
func (e *Engine) ExtractDomainFacts(ctx context.Context, userPrompt, answer string) ExtractResult {
	prompt := fmt.Sprintf(
		"You are a business-data extraction agent. From the following conversation "+
			"turn, extract any newly mentioned customers or sales orders. Respond with "+
			"'%s' if there is nothing to record. Otherwise respond with ONLY valid JSON "+
			`of the form {"customers":[{"name":"...","industry":"..."}],`+
			`"sales_orders":[{"customer_name":"...","title":"...","status":"..."}]}.`+
			"\n\nConversation:\nUser asked: %q. Assistant responded: %q.",
		extractSentinel, userPrompt, answer,
	)

	callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()

	reply, err := e.generator.Generate(callCtx, []llm.Message{llm.NewMessage(llm.RoleUser, prompt)})
	if err != nil {
		e.logger.Warn("extraction call failed", zap.Error(err))
		return ExtractResult{Outcome: OutcomeFailed}
	}

	trimmed := strings.TrimSpace(reply)
	if trimmed == "" || strings.EqualFold(trimmed, extractSentinel) {
		return ExtractResult{Outcome: OutcomeNone}
	}

	patch, err := parseDomainPatch(trimmed)
	if err != nil {
		e.logger.Warn("extraction output malformed, applying as no update",
			zap.Error(err),
		)
		return ExtractResult{Outcome: OutcomeMalformed}
	}
	if patch.empty() {
		return ExtractResult{Outcome: OutcomeNone}
	}

	return e.applyDomainPatch(ctx, patch)
}

// applyDomainPatch merges one well-formed patch into the domain store.
func (e *Engine) applyDomainPatch(ctx context.Context, patch domainPatch) ExtractResult {
	result := ExtractResult{Outcome: OutcomeApplied}

	for _, c := range patch.Customers {
		if c.Name == "" {
			continue
		}
		inserted, err := e.store.UpsertCustomer(ctx, c.Name, c.Industry)
		if err != nil {
			e.logger.Warn("customer upsert failed",
				zap.String("name", c.Name),
				zap.Error(err),
			)
			continue
		}
		if inserted {
			result.Customers++
			e.logger.Info("customer recorded",
				zap.String("name", c.Name),
				zap.String("industry", c.Industry),
			)
		}
	}

	for _, o := range patch.SalesOrders {
		if o.CustomerName == "" || o.Title == "" {
			result.SkippedOrders++
			continue
		}

		customer, err := e.store.FindCustomer(ctx, o.CustomerName)
		if err != nil {
			var notFound storage.NotFoundError
			if errors.As(err, &notFound) {
				// Unresolved references are skipped, never queued or
				// created with a dangling customer.
				e.logger.Warn("order references unknown customer, skipping",
					zap.String("customer_name", o.CustomerName),
					zap.String("title", o.Title),
				)
			} else {
				e.logger.Warn("customer lookup failed",
					zap.String("customer_name", o.CustomerName),
					zap.Error(err),
				)
			}
			result.SkippedOrders++
			continue
		}

		inserted, err := e.store.InsertOrder(ctx, customer.CustomerID, o.Title, o.Status)
		if err != nil {
			e.logger.Warn("order insert failed",
				zap.String("customer_name", o.CustomerName),
				zap.String("title", o.Title),
				zap.Error(err),
			)
			result.SkippedOrders++
			continue
		}
		if inserted {
			result.Orders++
			e.logger.Info("sales order recorded",
				zap.String("customer_name", o.CustomerName),
				zap.String("title", o.Title),
				zap.String("status", o.Status),
			)
		}
	}

	return result
}

// parseDomainPatch decodes the model's structured output, tolerating a
// markdown code fence around the document but nothing else: the document
// itself must match the schema exactly.
func parseDomainPatch(reply string) (domainPatch, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return domainPatch{}, fmt.Errorf("no JSON document in reply")
	}

	dec := json.NewDecoder(strings.NewReader(reply[start : end+1]))
	dec.DisallowUnknownFields()

	var patch domainPatch
	if err := dec.Decode(&patch); err != nil {
		return domainPatch{}, fmt.Errorf("decoding domain patch: %w", err)
	}

	return patch, nil
}

// Package figures derives every monetary amount of a measurement bulletin
// from its inputs. Nothing here touches storage: identical inputs always
// yield identical outputs, so callers may compute at render time (bulletin
// detail, previews, export) without any cache to invalidate.
package figures

import (
	"github.com/shopspring/decimal"

	"github.com/construtiva/obratrack/internal/measurement/entity"
)

var hundred = decimal.NewFromInt(100)

// ItemFigures carries the derived values of one contract-linked line.
type ItemFigures struct {
	ContractItemID     string          `json:"contract_item_id"`
	ItemNumber         string          `json:"item_number"`
	ServiceName        string          `json:"service_name"`
	Unit               string          `json:"unit"`
	UnitPrice          decimal.Decimal `json:"unit_price"`
	ContractedQuantity decimal.Decimal `json:"contracted_quantity"`
	TotalContractValue decimal.Decimal `json:"total_contract_value"`
	AccumulatedPrev    decimal.Decimal `json:"accumulated_prev"`
	QuantityThisPeriod decimal.Decimal `json:"quantity_this_period"`
	AccumulatedCurrent decimal.Decimal `json:"accumulated_current"`
	PercentExecuted    decimal.Decimal `json:"percent_executed"`
	OverExecuted       bool            `json:"over_executed"`
	PeriodValue        decimal.Decimal `json:"period_value"`
}

// AdditiveFigures carries the derived values of one extra-contractual line.
// Additives have no accumulation history.
type AdditiveFigures struct {
	ItemNumber         string          `json:"item_number"`
	ServiceName        string          `json:"service_name"`
	Unit               string          `json:"unit"`
	UnitPrice          decimal.Decimal `json:"unit_price"`
	ContractedQuantity decimal.Decimal `json:"contracted_quantity"`
	QuantityThisPeriod decimal.Decimal `json:"quantity_this_period"`
	PeriodValue        decimal.Decimal `json:"period_value"`
}

// Figures is the full financial picture of one bulletin for one period.
type Figures struct {
	Items          []ItemFigures     `json:"items"`
	Additives      []AdditiveFigures `json:"additives"`
	GrossItems     decimal.Decimal   `json:"gross_items"`
	GrossAdditives decimal.Decimal   `json:"gross_additives"`
	TotalGross     decimal.Decimal   `json:"total_gross"`
	DiscountValue  decimal.Decimal   `json:"discount_value"`
	TotalNet       decimal.Decimal   `json:"total_net"`
	RetentionPct   decimal.Decimal   `json:"retention_pct"`
	Retention      decimal.Decimal   `json:"retention_amount"`
	InvoiceValue   decimal.Decimal   `json:"invoice_value"`
}

// Compute materializes all per-line and bulletin-level amounts. Items must
// carry their ContractItem; accumulated maps contract item id to the
// quantity billed in strictly earlier bulletins. Intermediates are never
// rounded; presentation rounds for display.
//
// Percent executed may exceed 100: over-execution is flagged, not rejected,
// because it is a judgment call for the approval chain, not an arithmetic
// error.
func Compute(
	items []entity.MeasurementItem,
	additives []entity.MeasurementAdditive,
	accumulated map[string]decimal.Decimal,
	discountValue decimal.Decimal,
	retentionPct decimal.Decimal,
) Figures {
	f := Figures{
		Items:         make([]ItemFigures, 0, len(items)),
		Additives:     make([]AdditiveFigures, 0, len(additives)),
		DiscountValue: discountValue,
		RetentionPct:  retentionPct,
	}

	for _, it := range items {
		fig := ItemFigures{
			ContractItemID:     it.ContractItemID,
			AccumulatedPrev:    accumulated[it.ContractItemID],
			QuantityThisPeriod: it.QuantityThisPeriod,
		}
		if ci := it.ContractItem; ci != nil {
			fig.ItemNumber = ci.ItemNumber
			fig.ServiceName = ci.ServiceName
			fig.Unit = ci.Unit
			fig.UnitPrice = ci.UnitPrice
			fig.ContractedQuantity = ci.ContractedQuantity
			fig.TotalContractValue = ci.UnitPrice.Mul(ci.ContractedQuantity)
			fig.PeriodValue = it.QuantityThisPeriod.Mul(ci.UnitPrice)
		}
		fig.AccumulatedCurrent = fig.AccumulatedPrev.Add(it.QuantityThisPeriod)
		if fig.ContractedQuantity.IsPositive() {
			fig.PercentExecuted = fig.AccumulatedCurrent.Div(fig.ContractedQuantity).Mul(hundred)
			fig.OverExecuted = fig.AccumulatedCurrent.GreaterThan(fig.ContractedQuantity)
		}
		f.GrossItems = f.GrossItems.Add(fig.PeriodValue)
		f.Items = append(f.Items, fig)
	}

	for _, ad := range additives {
		fig := AdditiveFigures{
			ItemNumber:         ad.ItemNumber,
			ServiceName:        ad.ServiceName,
			Unit:               ad.Unit,
			UnitPrice:          ad.UnitPrice,
			ContractedQuantity: ad.ContractedQuantity,
			QuantityThisPeriod: ad.QuantityThisPeriod,
			PeriodValue:        ad.QuantityThisPeriod.Mul(ad.UnitPrice),
		}
		f.GrossAdditives = f.GrossAdditives.Add(fig.PeriodValue)
		f.Additives = append(f.Additives, fig)
	}

	f.TotalGross = f.GrossItems.Add(f.GrossAdditives)
	f.TotalNet = f.TotalGross.Sub(discountValue)
	f.Retention = f.TotalNet.Mul(retentionPct).Div(hundred)
	f.InvoiceValue = f.TotalNet.Sub(f.Retention)
	return f
}

package figures

import (
	"testing"

	"github.com/construtiva/obratrack/internal/measurement/entity"
	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func contractItem(id, price, contracted string) *entity.ContractItem {
	return &entity.ContractItem{
		ID:                 id,
		ItemNumber:         "1.1",
		ServiceName:        "Escavacao manual",
		Unit:               "M3",
		UnitPrice:          dec(price),
		ContractedQuantity: dec(contracted),
	}
}

func TestComputeSingleItem(t *testing.T) {
	ci := contractItem("ci-1", "10", "100")
	items := []entity.MeasurementItem{
		{ContractItemID: "ci-1", QuantityThisPeriod: dec("30"), ContractItem: ci},
	}
	accumulated := map[string]decimal.Decimal{"ci-1": dec("20")}

	f := Compute(items, nil, accumulated, decimal.Zero, dec("5"))

	if len(f.Items) != 1 {
		t.Fatalf("Expected 1 item, got %d", len(f.Items))
	}
	it := f.Items[0]

	if !it.TotalContractValue.Equal(dec("1000")) {
		t.Errorf("total_contract_value: expected 1000, got %s", it.TotalContractValue)
	}
	if !it.AccumulatedCurrent.Equal(dec("50")) {
		t.Errorf("accumulated_current: expected 50, got %s", it.AccumulatedCurrent)
	}
	if !it.PercentExecuted.Equal(dec("50")) {
		t.Errorf("percent_executed: expected 50, got %s", it.PercentExecuted)
	}
	if it.OverExecuted {
		t.Error("Item at 50% should not be flagged over-executed")
	}
	if !it.PeriodValue.Equal(dec("300")) {
		t.Errorf("period_value: expected 300, got %s", it.PeriodValue)
	}

	if !f.TotalGross.Equal(dec("300")) {
		t.Errorf("total_gross: expected 300, got %s", f.TotalGross)
	}
	if !f.TotalNet.Equal(dec("300")) {
		t.Errorf("total_net: expected 300, got %s", f.TotalNet)
	}
	if !f.Retention.Equal(dec("15")) {
		t.Errorf("retention: expected 15, got %s", f.Retention)
	}
	if !f.InvoiceValue.Equal(dec("285")) {
		t.Errorf("invoice_value: expected 285, got %s", f.InvoiceValue)
	}
}

func TestComputeOverExecutionFlaggedNotRejected(t *testing.T) {
	ci := contractItem("ci-1", "10", "100")
	items := []entity.MeasurementItem{
		{ContractItemID: "ci-1", QuantityThisPeriod: dec("40"), ContractItem: ci},
	}
	accumulated := map[string]decimal.Decimal{"ci-1": dec("80")}

	f := Compute(items, nil, accumulated, decimal.Zero, decimal.Zero)

	it := f.Items[0]
	if !it.PercentExecuted.Equal(dec("120")) {
		t.Errorf("percent_executed: expected 120, got %s", it.PercentExecuted)
	}
	if !it.OverExecuted {
		t.Error("Expected over_executed flag at 120%")
	}
	// The amount still bills in full.
	if !it.PeriodValue.Equal(dec("400")) {
		t.Errorf("period_value: expected 400, got %s", it.PeriodValue)
	}
}

func TestComputeNoPriorAccumulation(t *testing.T) {
	ci := contractItem("ci-1", "25.50", "10")
	items := []entity.MeasurementItem{
		{ContractItemID: "ci-1", QuantityThisPeriod: dec("4"), ContractItem: ci},
	}

	f := Compute(items, nil, map[string]decimal.Decimal{}, decimal.Zero, decimal.Zero)

	it := f.Items[0]
	if !it.AccumulatedPrev.IsZero() {
		t.Errorf("accumulated_prev: expected 0, got %s", it.AccumulatedPrev)
	}
	if !it.AccumulatedCurrent.Equal(dec("4")) {
		t.Errorf("accumulated_current: expected 4, got %s", it.AccumulatedCurrent)
	}
	if !it.PeriodValue.Equal(dec("102")) {
		t.Errorf("period_value: expected 102, got %s", it.PeriodValue)
	}
}

func TestComputeAdditivesAndDiscount(t *testing.T) {
	ci := contractItem("ci-1", "10", "100")
	items := []entity.MeasurementItem{
		{ContractItemID: "ci-1", QuantityThisPeriod: dec("10"), ContractItem: ci},
	}
	additives := []entity.MeasurementAdditive{
		{
			ItemNumber:         "A.1",
			ServiceName:        "Bomba de concreto",
			Unit:               "DIA",
			UnitPrice:          dec("150"),
			ContractedQuantity: dec("5"),
			QuantityThisPeriod: dec("2"),
		},
	}

	f := Compute(items, additives, map[string]decimal.Decimal{}, dec("50"), dec("10"))

	if !f.GrossItems.Equal(dec("100")) {
		t.Errorf("gross_items: expected 100, got %s", f.GrossItems)
	}
	if !f.GrossAdditives.Equal(dec("300")) {
		t.Errorf("gross_additives: expected 300, got %s", f.GrossAdditives)
	}
	if !f.TotalGross.Equal(dec("400")) {
		t.Errorf("total_gross: expected 400, got %s", f.TotalGross)
	}
	if !f.TotalNet.Equal(dec("350")) {
		t.Errorf("total_net: expected 350, got %s", f.TotalNet)
	}
	if !f.Retention.Equal(dec("35")) {
		t.Errorf("retention: expected 35, got %s", f.Retention)
	}
	if !f.InvoiceValue.Equal(dec("315")) {
		t.Errorf("invoice_value: expected 315, got %s", f.InvoiceValue)
	}
}

// Fractional quantities must carry through without intermediate rounding.
func TestComputeExactDecimals(t *testing.T) {
	ci := contractItem("ci-1", "33.3333", "3")
	items := []entity.MeasurementItem{
		{ContractItemID: "ci-1", QuantityThisPeriod: dec("1.5"), ContractItem: ci},
	}

	f := Compute(items, nil, map[string]decimal.Decimal{}, decimal.Zero, decimal.Zero)

	if !f.Items[0].PeriodValue.Equal(dec("49.99995")) {
		t.Errorf("period_value: expected 49.99995, got %s", f.Items[0].PeriodValue)
	}
	if !f.Items[0].PercentExecuted.Equal(dec("50")) {
		t.Errorf("percent_executed: expected 50, got %s", f.Items[0].PercentExecuted)
	}
}

func TestComputeEmptyBulletin(t *testing.T) {
	f := Compute(nil, nil, nil, decimal.Zero, dec("5"))

	if len(f.Items) != 0 || len(f.Additives) != 0 {
		t.Fatalf("Expected no lines, got %d items and %d additives", len(f.Items), len(f.Additives))
	}
	if !f.TotalGross.IsZero() || !f.TotalNet.IsZero() || !f.Retention.IsZero() || !f.InvoiceValue.IsZero() {
		t.Error("Expected all totals to be zero for an empty bulletin")
	}
}

func TestComputeZeroContractedQuantity(t *testing.T) {
	ci := contractItem("ci-1", "10", "0")
	items := []entity.MeasurementItem{
		{ContractItemID: "ci-1", QuantityThisPeriod: dec("5"), ContractItem: ci},
	}

	f := Compute(items, nil, map[string]decimal.Decimal{}, decimal.Zero, decimal.Zero)

	it := f.Items[0]
	if !it.PercentExecuted.IsZero() {
		t.Errorf("percent_executed with zero contracted: expected 0, got %s", it.PercentExecuted)
	}
	if it.OverExecuted {
		t.Error("Zero contracted quantity must not flag over-execution")
	}
}

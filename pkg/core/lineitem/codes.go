// Package lineitem defines the fixed vocabulary of reclassified line items
// and the per-year ledger that holds their amounts.
package lineitem

import "fmt"

// Code identifies one standard financial-statement position.
type Code int

// Kind partitions codes into flows, stocks and the two plug stocks.
type Kind int

const (
	KindFlow Kind = iota // income statement
	KindStock            // balance sheet
	KindPlug             // cash / bank debt, derived last
)

const (
	NetSales               Code = iota // RI01
	FinishedGoodsVariation             // RI02
	OtherIncome                        // RI03
	CapitalizedCosts                   // RI04
	Purchases                          // RI05 (cost of goods sold)
	Services                           // RI06
	LeasedAssets                       // RI07
	OtherOperatingCharges              // RI08
	RawMaterialsVariation              // RI09
	Personnel                          // RI10
	Depreciation                       // RI11
	ProvisionsWriteDowns               // RI12
	InterestExpense                    // RI13
	FinancialIncome                    // RI14
	OtherNonOperatingCosts             // RI15
	OtherNonOperatingIncome            // RI16
	IncomeTaxes                        // RI17
	NetIncome                          // RI18
	SubscribedCapital                  // RI19
	IntangibleAssets                   // RI20
	TangibleAssets                     // RI21
	FinancialAssets                    // RI22
	TradeReceivables                   // RI23
	TradePayables                      // RI24
	Inventory                          // RI25
	OtherReceivables                   // RI26
	OtherPayables                      // RI27
	SeveranceFund                      // RI28 (TFR)
	RiskProvisions                     // RI29
	OtherLongTermDebt                  // RI30
	Cash                               // RI31
	Equity                             // RI32
	BankDebt                           // RI33

	numCodes
)

// Count is the size of the vocabulary.
const Count = int(numCodes)

type codeInfo struct {
	id    string
	label string
	kind  Kind
}

var codeTable = [numCodes]codeInfo{
	NetSales:                {"RI01", "Ricavi dalle vendite e prestazioni", KindFlow},
	FinishedGoodsVariation:  {"RI02", "Variazione rimanenze prodotti finiti", KindFlow},
	OtherIncome:             {"RI03", "Altri ricavi e proventi", KindFlow},
	CapitalizedCosts:        {"RI04", "Costi capitalizzati", KindFlow},
	Purchases:               {"RI05", "Acquisti di merci", KindFlow},
	Services:                {"RI06", "Costi per servizi", KindFlow},
	LeasedAssets:            {"RI07", "Godimento di beni di terzi", KindFlow},
	OtherOperatingCharges:   {"RI08", "Oneri diversi di gestione", KindFlow},
	RawMaterialsVariation:   {"RI09", "Variazione rim m.p. e merci", KindFlow},
	Personnel:               {"RI10", "Personale", KindFlow},
	Depreciation:            {"RI11", "Ammortamenti", KindFlow},
	ProvisionsWriteDowns:    {"RI12", "Accantonamenti e sval. attivo corrente", KindFlow},
	InterestExpense:         {"RI13", "Oneri finanziari", KindFlow},
	FinancialIncome:         {"RI14", "Proventi finanziari", KindFlow},
	OtherNonOperatingCosts:  {"RI15", "Altri costi non operativi", KindFlow},
	OtherNonOperatingIncome: {"RI16", "Altri ricavi e proventi non operativi", KindFlow},
	IncomeTaxes:             {"RI17", "Imposte di esercizio", KindFlow},
	NetIncome:               {"RI18", "Risultato netto", KindFlow},
	SubscribedCapital:       {"RI19", "Soci c/sottoscrizioni", KindStock},
	IntangibleAssets:        {"RI20", "Immobilizzazioni immateriali", KindStock},
	TangibleAssets:          {"RI21", "Immobilizzazioni materiali", KindStock},
	FinancialAssets:         {"RI22", "Immobilizzazioni finanziarie", KindStock},
	TradeReceivables:        {"RI23", "Crediti verso clienti", KindStock},
	TradePayables:           {"RI24", "Debiti verso fornitori", KindStock},
	Inventory:               {"RI25", "Rimanenze", KindStock},
	OtherReceivables:        {"RI26", "Altri crediti b.t.", KindStock},
	OtherPayables:           {"RI27", "Altri debiti b.t.", KindStock},
	SeveranceFund:           {"RI28", "TFR", KindStock},
	RiskProvisions:          {"RI29", "Fondi rischi e oneri", KindStock},
	OtherLongTermDebt:       {"RI30", "Altri debiti m.l.t.", KindStock},
	Cash:                    {"RI31", "Liquidità", KindPlug},
	Equity:                  {"RI32", "Patrimonio netto", KindStock},
	BankDebt:                {"RI33", "Banche passive", KindPlug},
}

var byID = func() map[string]Code {
	m := make(map[string]Code, numCodes)
	for c := Code(0); c < numCodes; c++ {
		m[codeTable[c].id] = c
	}
	return m
}()

// All returns every code in storage order (RI01..RI33).
func All() []Code {
	out := make([]Code, numCodes)
	for i := range out {
		out[i] = Code(i)
	}
	return out
}

// ParseCode maps a storage identifier such as "RI01" to its Code.
func ParseCode(s string) (Code, error) {
	c, ok := byID[s]
	if !ok {
		return 0, fmt.Errorf("unknown line item code %q", s)
	}
	return c, nil
}

// Valid reports whether c belongs to the vocabulary.
func (c Code) Valid() bool { return c >= 0 && c < numCodes }

// String returns the storage identifier ("RI01").
func (c Code) String() string {
	if !c.Valid() {
		return fmt.Sprintf("Code(%d)", int(c))
	}
	return codeTable[c].id
}

// Label returns the human-readable description.
func (c Code) Label() string {
	if !c.Valid() {
		return ""
	}
	return codeTable[c].label
}

// Kind returns the statement partition of the code.
func (c Code) Kind() Kind {
	if !c.Valid() {
		return KindFlow
	}
	return codeTable[c].kind
}

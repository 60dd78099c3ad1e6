package store

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bizplan/pkg/core/lineitem"
)

func TestDecodeLedgerCSV(t *testing.T) {
	doc := "Cliente,Anno,Codice,Descrizione,Importo\n" +
		"acme,2023,RI01,Ricavi,800000\n" +
		"acme,2024,RI01,Ricavi Italia,600000\n" +
		"acme,2024,ri01,Ricavi estero,400000.5\n" +
		"\n" +
		"beta,2024,RI33,Banche,12000\n"

	ledgers, err := DecodeLedgerCSV(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, ledgers, 2)

	acme := ledgers["acme"]
	assert.Equal(t, []int{2023, 2024}, acme.Years())
	assert.Equal(t, 800_000.0, acme.Get(2023, lineitem.NetSales))
	assert.Equal(t, 1_000_000.5, acme.Get(2024, lineitem.NetSales))
	assert.Equal(t, 12_000.0, ledgers["beta"].Get(2024, lineitem.BankDebt))
}

func TestDecodeLedgerCSV_SemicolonAndItalianAmounts(t *testing.T) {
	doc := "\ufeffcliente;anno;codice;importo\r\nacme;2024;RI32;1.234,56\r\nacme;2024;RI31;20000\r\n"

	ledgers, err := DecodeLedgerCSV(strings.NewReader(doc))
	require.NoError(t, err)
	assert.InDelta(t, 1234.56, ledgers["acme"].Get(2024, lineitem.Equity), 1e-9)
	assert.Equal(t, 20_000.0, ledgers["acme"].Get(2024, lineitem.Cash))
}

func TestDecodeLedgerCSV_Rejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"empty", "", "empty"},
		{"missing column", "cliente,anno,codice\nacme,2024,RI01\n", "importo"},
		{"bad year", "cliente,anno,codice,importo\nacme,duemila,RI01,1\n", "line 2"},
		{"bad code", "cliente,anno,codice,importo\nacme,2024,RI99,1\n", "RI99"},
		{"bad amount", "cliente,anno,codice,importo\nacme,2024,RI01,tanti\n", "tanti"},
		{"no client", "cliente,anno,codice,importo\n,2024,RI01,1\n", "cliente"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeLedgerCSV(strings.NewReader(tt.doc))
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

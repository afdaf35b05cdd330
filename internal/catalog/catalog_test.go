package catalog

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"ktdde/internal/jsonview"
)

type CatalogSuite struct {
	suite.Suite
	c *Catalog
}

func TestCatalogSuite(t *testing.T) {
	suite.Run(t, new(CatalogSuite))
}

func (s *CatalogSuite) SetupSuite() {
	c, err := Default()
	s.Require().NoError(err)
	s.c = c
}

func (s *CatalogSuite) TestBankView() {
	s.Equal([]string{
		"purchase_order",
		"documentary_credit",
		"commercial_invoice",
		"bill_of_lading",
		"certificate_of_origin",
		"packing_list",
		"insurance_certificate",
		"phytosanitary_certificate",
		"payment_confirmation",
	}, s.c.DocumentsFor("bank"))
}

func (s *CatalogSuite) TestCarrierViewHasNoDanglingKey() {
	keys := s.c.DocumentsFor("carrier")
	s.Equal([]string{"bill_of_lading", "packing_list", "sea_cargo_manifest", "phytosanitary_certificate", "warehouse_receipt"}, keys)
}

func (s *CatalogSuite) TestEveryViewKeyResolves() {
	for _, a := range s.c.Actors() {
		keys := s.c.DocumentsFor(a.Key)
		s.NotEmpty(keys, a.Key)
		for _, k := range keys {
			d, ok := s.c.Get(k)
			s.True(ok, "%s lists %s", a.Key, k)
			s.True(d.VisibleTo(a.Key))
		}
	}
}

func (s *CatalogSuite) TestUnknownLookups() {
	s.Empty(s.c.DocumentsFor("auditor"))
	_, ok := s.c.Get("dangerous_goods_declaration")
	s.False(ok)
	_, ok = s.c.Actor("auditor")
	s.False(ok)
	_, ok = s.c.ByBusinessID("nope")
	s.False(ok)
}

func (s *CatalogSuite) TestActorsInAuthoredOrder() {
	var keys []string
	for _, a := range s.c.Actors() {
		keys = append(keys, a.Key)
	}
	s.Equal([]string{"buyer", "seller", "bank", "carrier", "customs", "chamber", "certifier"}, keys)
}

func (s *CatalogSuite) TestDocumentTypeFromContent() {
	d, ok := s.c.Get("purchase_order")
	s.Require().True(ok)
	s.Equal("PurchaseOrder", d.Type)
	s.Equal("4500001000", d.BusinessID)
	s.Require().NotNil(d.Source)
	s.Len(d.Source.Mappings, 8)
	ekpo, ok := d.Source.Table("EKPO")
	s.Require().True(ok)
	s.Len(ekpo.Records, 2)
	v, ok := ekpo.Records[0].Get("NETPR")
	s.True(ok)
	s.Equal("1950.00", v)
}

func (s *CatalogSuite) TestByBusinessID() {
	d, ok := s.c.ByBusinessID("FESCO2024FI123456")
	s.Require().True(ok)
	s.Equal("bill_of_lading", d.Key)
}

func (s *CatalogSuite) TestTimeline() {
	events := s.c.Events()
	s.Len(events, 16)
	s.Equal("Purchase Order Issued", events[0].Title)
	for i := 1; i < len(events); i++ {
		s.False(events[i].On.Before(events[i-1].On), "%s before %s", events[i].Date, events[i-1].Date)
	}
	var informational int
	for _, e := range events {
		if !e.Interactive() {
			informational++
			s.Equal("Vessel Arrives Tokyo Port", e.Title)
			continue
		}
		_, ok := s.c.Get(e.Doc)
		s.True(ok, e.Doc)
	}
	s.Equal(1, informational)
}

func (s *CatalogSuite) TestIntegrityReportIsClean() {
	rep := Check(s.c)
	s.True(rep.OK(), "%+v", rep.Issues)
	s.Greater(rep.Checked, 40)
}

func (s *CatalogSuite) TestReturnedSlicesAreCopies() {
	keys := s.c.DocumentsFor("bank")
	keys[0] = "changed"
	s.Equal("purchase_order", s.c.DocumentsFor("bank")[0])

	d, _ := s.c.Get("bill_of_lading")
	delete(d.Views, "carrier")
	again, _ := s.c.Get("bill_of_lading")
	s.True(again.VisibleTo("carrier"))

	docs := s.c.Documents()
	docs[0].Views["auditor"] = 1
	s.False(s.c.Documents()[0].VisibleTo("auditor"))
}

func (s *CatalogSuite) TestCommercialInvoiceAmounts() {
	d, ok := s.c.Get("commercial_invoice")
	s.Require().True(ok)
	lines := jsonview.Items(field(d.Content, "invoiceLines"))
	s.Require().Len(lines, 2)

	price, ok := amountAt(lines[0], "unitPrice")
	s.Require().True(ok)
	qty, ok := amountAt(lines[0], "quantity")
	s.Require().True(ok)
	total, ok := amountAt(lines[0], "lineTotal")
	s.Require().True(ok)
	s.Equal(1950.0, price.value)
	s.Equal(120.0, qty.value)
	s.Equal(234000.0, total.value)

	sub, _ := amountAt(d.Content, "subtotal")
	freight, _ := amountAt(d.Content, "freightCharges")
	grand, _ := amountAt(d.Content, "totalAmount")
	s.Equal(339000.0, sub.value)
	s.Equal(12000.0, freight.value)
	s.Equal(351000.0, grand.value)
	s.Equal("EUR", grand.currency)
}

const minimal = `
scenario: {id: "T", title: "Test", scheme: "KTDDE"}
actors:
  - {key: buyer, name: Buyer}
  - {key: seller, name: Seller}
documents:
  - key: a
    business_id: "A-1"
    views: {buyer: 1}
    content:
      "@type": "PurchaseOrder"
      goodsItems:
        - quantity: {value: 3}
          unitPrice: {value: 2.5, currency: EUR}
          totalAmount: {value: 7.5, currency: EUR}
      totalAmount: {value: 7.5, currency: EUR}
  - key: b
    views: {buyer: 2, seller: 1}
    content:
      "@type": "CommercialInvoice"
      referencePO: "A-1"
timeline:
  - {date: "2026-01-01", event: "One", actor: Buyer, doc: a}
  - {date: "2026-01-02", event: "Two", actor: Seller}
`

func TestParseMinimal(t *testing.T) {
	c, err := Parse([]byte(minimal), "test")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, c.DocumentsFor("buyer"))
	assert.Equal(t, []string{"b"}, c.DocumentsFor("seller"))
	assert.Equal(t, "test", c.Source())
	rep := Check(c)
	assert.True(t, rep.OK(), "%+v", rep.Issues)
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(string) string
		wantMsg string
	}{
		{
			name:    "unknown actor in views",
			mutate:  func(s string) string { return strings.Replace(s, "{buyer: 1}", "{auditor: 1}", 1) },
			wantMsg: `unknown actor "auditor"`,
		},
		{
			name:    "duplicate rank",
			mutate:  func(s string) string { return strings.Replace(s, "{buyer: 2, seller: 1}", "{buyer: 1, seller: 1}", 1) },
			wantMsg: "share rank 1",
		},
		{
			name:    "unknown timeline document",
			mutate:  func(s string) string { return strings.Replace(s, "doc: a}", "doc: missing}", 1) },
			wantMsg: `unknown document "missing"`,
		},
		{
			name:    "bad date",
			mutate:  func(s string) string { return strings.Replace(s, "2026-01-02", "02/01/2026", 1) },
			wantMsg: "bad date",
		},
		{
			name:    "missing type",
			mutate:  func(s string) string { return strings.Replace(s, `"@type": "CommercialInvoice"`, `kind: "CommercialInvoice"`, 1) },
			wantMsg: "no @type",
		},
		{
			name:    "misspelled document field",
			mutate:  func(s string) string { return strings.Replace(s, "views: {buyer: 1}", "veiws: {buyer: 1}", 1) },
			wantMsg: "field veiws not found",
		},
		{
			name:    "misspelled actor field",
			mutate:  func(s string) string { return strings.Replace(s, "{key: seller, name: Seller}", "{key: seller, nmae: Seller}", 1) },
			wantMsg: "field nmae not found",
		},
		{
			name:    "misspelled timeline field",
			mutate:  func(s string) string { return strings.Replace(s, `event: "Two"`, `evnt: "Two"`, 1) },
			wantMsg: "field evnt not found",
		},
		{
			name:    "malformed yaml",
			mutate:  func(s string) string { return s + "\n  - [unclosed" },
			wantMsg: "test",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.mutate(minimal)), "test")
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidScenario)
			assert.Contains(t, err.Error(), tc.wantMsg)
		})
	}
}

func TestLoadErrorsCarryLines(t *testing.T) {
	src := strings.Replace(minimal, "{key: seller, name: Seller}", "{key: buyer, name: Seller}", 1)
	_, err := Parse([]byte(src), "test")
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, 5, le.Line)
	assert.Contains(t, err.Error(), `test:5: duplicate actor "buyer"`)

	src = strings.Replace(minimal, "2026-01-02", "02/01/2026", 1)
	_, err = Parse([]byte(src), "test")
	require.ErrorAs(t, err, &le)
	assert.Equal(t, strings.Count(minimal[:strings.Index(minimal, "2026-01-02")], "\n")+1, le.Line)
}

const invoice = `
scenario: {id: "I", title: "Invoice", scheme: "KTDDE"}
actors:
  - {key: seller, name: Seller}
documents:
  - key: inv
    views: {seller: 1}
    content:
      "@type": "CommercialInvoice"
      invoiceLines:
        - quantity: {value: 120}
          unitPrice: {value: 1950.0, currency: EUR}
          lineTotal: {value: 234000.0, currency: EUR}
        - quantity: {value: 40}
          unitPrice: {value: 2625.0, currency: EUR}
          lineTotal: {value: 105000.0, currency: EUR}
      subtotal: {value: 339000.0, currency: EUR}
      freightCharges: {value: 12000.0, currency: EUR}
      totalAmount: {value: 351000.0, currency: EUR}
timeline: []
`

func TestInvoiceTotal(t *testing.T) {
	c, err := Parse([]byte(invoice), "test")
	require.NoError(t, err)
	rep := Check(c)
	assert.True(t, rep.OK(), "%+v", rep.Issues)

	broken := strings.Replace(invoice, "freightCharges: {value: 12000.0", "freightCharges: {value: 11000.0", 1)
	c, err = Parse([]byte(broken), "test")
	require.NoError(t, err)
	rep = Check(c)
	require.Len(t, rep.Issues, 1)
	assert.Equal(t, CheckInvoiceTotal, rep.Issues[0].Check)
	assert.Equal(t, "inv", rep.Issues[0].Doc)
	assert.Contains(t, rep.Issues[0].Message, "totalAmount is 351000")
}

func TestCheckReportsBrokenInvariants(t *testing.T) {
	src := strings.Replace(minimal, "totalAmount: {value: 7.5, currency: EUR}\n      totalAmount", "totalAmount: {value: 8, currency: EUR}\n      totalAmount", 1)
	src = strings.Replace(src, `referencePO: "A-1"`, `referencePO: "A-2"`, 1)
	src = strings.Replace(src, "2026-01-02", "2025-12-31", 1)
	c, err := Parse([]byte(src), "test")
	require.NoError(t, err)

	rep := Check(c)
	require.False(t, rep.OK())
	checks := map[string]bool{}
	for _, is := range rep.Issues {
		checks[is.Check] = true
	}
	assert.True(t, checks[CheckLineTotal])
	assert.True(t, checks[CheckLinesSum])
	assert.True(t, checks[CheckCrossReference])
	assert.True(t, checks[CheckTimelineOrder])
}

func TestEmbeddedIsACopy(t *testing.T) {
	a := Embedded()
	a[0] = 'X'
	assert.NotEqual(t, a[0], Embedded()[0])
}

package catalog

import (
	"fmt"
	"math"

	"gopkg.in/yaml.v3"

	"ktdde/internal/jsonview"
)

// Check names.
const (
	CheckView           = "view"
	CheckTimelineRef    = "timeline-ref"
	CheckTimelineOrder  = "timeline-order"
	CheckLineTotal      = "line-total"
	CheckLinesSum       = "lines-sum"
	CheckInvoiceTotal   = "invoice-total"
	CheckCrossReference = "cross-reference"
)

const tolerance = 0.005

type Issue struct {
	Check   string `json:"check"`
	Doc     string `json:"doc,omitempty"`
	Message string `json:"message"`
}

// Report is the outcome of Check. Checked counts individual assertions.
type Report struct {
	Checked int     `json:"checked"`
	Issues  []Issue `json:"issues"`
}

func (r Report) OK() bool { return len(r.Issues) == 0 }

// referenceTypes lists the cross-reference fields and the document type each
// one must resolve to.
var referenceTypes = []struct {
	field string
	typ   string
}{
	{"referencePO", "PurchaseOrder"},
	{"referenceLC", "DocumentaryCredit"},
	{"referenceBL", "BillOfLading"},
	{"referenceInvoice", "CommercialInvoice"},
}

type checker struct {
	c   *Catalog
	rep Report
}

func (k *checker) pass() { k.rep.Checked++ }

func (k *checker) fail(check, doc, format string, args ...any) {
	k.rep.Checked++
	k.rep.Issues = append(k.rep.Issues, Issue{Check: check, Doc: doc, Message: fmt.Sprintf(format, args...)})
}

// Check verifies the authored invariants of the scenario: every view and
// timeline key resolves, the timeline is ordered by date, line totals and
// invoice totals add up and cross-references point at existing documents.
func Check(c *Catalog) Report {
	k := &checker{c: c, rep: Report{Issues: []Issue{}}}
	for _, a := range c.actors {
		for _, key := range c.DocumentsFor(a.Key) {
			if _, ok := c.Get(key); ok {
				k.pass()
			} else {
				k.fail(CheckView, key, "actor %s lists unknown document", a.Key)
			}
		}
	}
	for i, e := range c.events {
		if e.Doc != "" {
			if _, ok := c.Get(e.Doc); ok {
				k.pass()
			} else {
				k.fail(CheckTimelineRef, e.Doc, "timeline entry %q references unknown document", e.Title)
			}
		}
		if i > 0 {
			prev := c.events[i-1]
			if e.On.Before(prev.On) {
				k.fail(CheckTimelineOrder, e.Doc, "%q (%s) comes after %q (%s)", e.Title, e.Date, prev.Title, prev.Date)
			} else {
				k.pass()
			}
		}
	}
	for _, d := range c.docs {
		k.lines(d.Key, d.Content, "goodsItems", "totalAmount", "totalAmount")
		k.lines(d.Key, d.Content, "invoiceLines", "lineTotal", "subtotal")
		k.invoiceTotal(d.Key, d.Content)
		k.references(d.Key, d.Content)
	}
	return k.rep
}

type amount struct {
	value    float64
	currency string
}

func amountAt(n *yaml.Node, key string) (amount, bool) {
	v, ok := jsonview.Lookup(n, key)
	if !ok {
		return amount{}, false
	}
	val, ok := jsonview.Lookup(v, "value")
	if !ok {
		return amount{}, false
	}
	f, ok := jsonview.Float(val)
	if !ok {
		return amount{}, false
	}
	cur, _ := jsonview.TextAt(v, "currency")
	return amount{value: f, currency: cur}, true
}

func near(a, b float64) bool { return math.Abs(a-b) <= tolerance }

// lines checks quantity × unit price for every line of list and, when the
// document carries sumField, that the line totals add up to it.
func (k *checker) lines(doc string, content *yaml.Node, list, totalField, sumField string) {
	items := jsonview.Items(field(content, list))
	if len(items) == 0 {
		return
	}
	var sum float64
	var sumCur string
	complete := true
	for i, item := range items {
		total, ok := amountAt(item, totalField)
		if !ok {
			complete = false
			continue
		}
		sum += total.value
		if sumCur == "" {
			sumCur = total.currency
		}
		price, okP := amountAt(item, "unitPrice")
		qty, okQ := amountAt(item, "quantity")
		if !okP || !okQ {
			continue
		}
		if want := price.value * qty.value; !near(want, total.value) {
			k.fail(CheckLineTotal, doc, "%s[%d]: %g × %g = %g, authored %g", list, i, qty.value, price.value, want, total.value)
		} else if price.currency != total.currency {
			k.fail(CheckLineTotal, doc, "%s[%d]: unit price in %s, total in %s", list, i, price.currency, total.currency)
		} else {
			k.pass()
		}
	}
	if !complete {
		return
	}
	want, ok := amountAt(content, sumField)
	if !ok {
		return
	}
	if !near(sum, want.value) {
		k.fail(CheckLinesSum, doc, "%s add up to %g, %s is %g", list, sum, sumField, want.value)
	} else if sumCur != want.currency {
		k.fail(CheckLinesSum, doc, "%s in %s, %s in %s", list, sumCur, sumField, want.currency)
	} else {
		k.pass()
	}
}

func (k *checker) invoiceTotal(doc string, content *yaml.Node) {
	sub, ok := amountAt(content, "subtotal")
	if !ok {
		return
	}
	total, ok := amountAt(content, "totalAmount")
	if !ok {
		return
	}
	freight, _ := amountAt(content, "freightCharges")
	if want := sub.value + freight.value; !near(want, total.value) {
		k.fail(CheckInvoiceTotal, doc, "subtotal %g + freight %g = %g, totalAmount is %g", sub.value, freight.value, want, total.value)
		return
	}
	k.pass()
}

func (k *checker) references(doc string, content *yaml.Node) {
	for _, ref := range referenceTypes {
		id, ok := jsonview.TextAt(content, ref.field)
		if !ok {
			continue
		}
		target, ok := k.c.ByBusinessID(id)
		switch {
		case !ok:
			k.fail(CheckCrossReference, doc, "%s %q matches no document", ref.field, id)
		case target.Type != ref.typ:
			k.fail(CheckCrossReference, doc, "%s %q is a %s, want %s", ref.field, id, target.Type, ref.typ)
		default:
			k.pass()
		}
	}
}

func field(n *yaml.Node, key string) *yaml.Node {
	v, _ := jsonview.Lookup(n, key)
	return v
}

package domain

import "fmt"

// CustomerEmail is the immutable input to the pipeline: one customer
// message, identified by an opaque email id.
type CustomerEmail struct {
	EmailID string
	Subject string
	Message string
}

// NewCustomerEmail constructs a CustomerEmail, requiring a non-empty id.
func NewCustomerEmail(emailID, subject, message string) (CustomerEmail, error) {
	if emailID == "" {
		return CustomerEmail{}, fmt.Errorf("email id must not be empty")
	}
	return CustomerEmail{EmailID: emailID, Subject: subject, Message: message}, nil
}

// ProductMention is a single referent to a product in the email, before
// resolution. It may be ambiguous: any subset of ID/name/description/type
// may be present.
type ProductMention struct {
	ProductID          string
	ProductName        string
	ProductDescription string
	ProductCategory    Category
	ProductType        string
	Quantity           int
	Confidence         float64
}

// Empty reports whether the mention carries no identifying information at
// all (the boundary case that must route straight to Unresolved, never to
// Candidates).
func (m ProductMention) Empty() bool {
	return m.ProductID == "" && m.ProductName == "" &&
		m.ProductDescription == "" && m.ProductType == ""
}

// Summary renders a short human-readable description of the mention, used
// in stockkeeper candidate metadata strings.
func (m ProductMention) Summary() string {
	name := m.ProductName
	if name == "" {
		name = m.ProductID
	}
	if name == "" {
		name = "(unspecified product)"
	}
	return fmt.Sprintf("%s (ID: %s, Type: %s, Category: %s, Quantity: %d)",
		name, orDash(m.ProductID), orDash(m.ProductType), orDash(string(m.ProductCategory)), m.Quantity)
}

func orDash(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

// Segment is one classified portion of the email, carrying the mentions it
// references.
type Segment struct {
	Kind             SegmentKind
	MainSentence     string
	RelatedSentences []string
	Mentions         []ProductMention
}

// EmailAnalysis is the Classifier's terminal output for one email.
type EmailAnalysis struct {
	EmailID     string
	Language    string
	Intent      Intent
	CustomerPII map[string]string
	Segments    []Segment
}

// HasOrderSegment reports whether any segment is of kind SegmentOrder.
func (a EmailAnalysis) HasOrderSegment() bool {
	for _, s := range a.Segments {
		if s.Kind == SegmentOrder {
			return true
		}
	}
	return false
}

// HasInquirySegment reports whether any segment is of kind SegmentInquiry.
func (a EmailAnalysis) HasInquirySegment() bool {
	for _, s := range a.Segments {
		if s.Kind == SegmentInquiry {
			return true
		}
	}
	return false
}

// AllMentions flattens mentions across every segment, in segment order.
func (a EmailAnalysis) AllMentions() []ProductMention {
	var out []ProductMention
	for _, s := range a.Segments {
		out = append(out, s.Mentions...)
	}
	return out
}

// Validate checks the data-model invariant: intent=order_request iff at
// least one segment has kind=order.
func (a EmailAnalysis) Validate() error {
	hasOrder := a.HasOrderSegment()
	if a.Intent == IntentOrderRequest && !hasOrder {
		return fmt.Errorf("email %s: intent=order_request but no order segment present", a.EmailID)
	}
	if a.Intent != IntentOrderRequest && hasOrder {
		return fmt.Errorf("email %s: order segment present but intent=%s", a.EmailID, a.Intent)
	}
	return nil
}

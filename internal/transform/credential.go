package transform

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"ktdde/internal/domain"
	"ktdde/internal/jsonview"
)

// CredentialID derives a stable urn:uuid for a document issued by iss at
// the given time.
func CredentialID(iss Issuer, docKey string, issued time.Time) string {
	name := fmt.Sprintf("%s/%s/%s", iss.ID, docKey, issued.UTC().Format(time.RFC3339))
	return "urn:uuid:" + uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}

// Credential wraps doc in a W3C Verifiable Credential envelope. The
// document content becomes the credential subject unchanged.
func Credential(doc domain.Document, opts Options) *yaml.Node {
	opts = opts.withDefaults()
	return jsonview.Object(
		jsonview.Field{Key: "@context", Value: jsonview.QuotedList(opts.Contexts...)},
		jsonview.Field{Key: "id", Value: jsonview.Quoted(CredentialID(opts.Issuer, doc.Key, opts.IssuedAt))},
		jsonview.Field{Key: "type", Value: jsonview.QuotedList("VerifiableCredential", doc.Type)},
		jsonview.Field{Key: "issuer", Value: jsonview.Object(
			jsonview.Field{Key: "id", Value: jsonview.Quoted(opts.Issuer.ID)},
			jsonview.Field{Key: "name", Value: jsonview.Quoted(opts.Issuer.Name)},
		)},
		jsonview.Field{Key: "issuanceDate", Value: jsonview.Quoted(opts.IssuedAt.Format(time.RFC3339))},
		jsonview.Field{Key: "credentialSubject", Value: doc.Content},
	)
}

var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("transform: CBOR encoder initialization failed: " + err.Error())
	}
}

// EncodeCBOR encodes a credential with core deterministic encoding. Map
// keys are sorted, so authored key order is not preserved.
func EncodeCBOR(cred *yaml.Node) ([]byte, error) {
	v, err := jsonview.Value(cred)
	if err != nil {
		return nil, fmt.Errorf("credential value: %w", err)
	}
	return encMode.Marshal(v)
}

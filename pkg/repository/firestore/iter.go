package firestore

import (
	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"
)

func collectRefs(iter *firestore.DocumentIterator) ([]*firestore.DocumentRef, error) {
	var refs []*firestore.DocumentRef
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate documents")
		}
		refs = append(refs, doc.Ref)
	}
	return refs, nil
}

// collectDocs decodes every document of iter into T and converts it with conv
func collectDocs[T any, R any](iter *firestore.DocumentIterator, conv func(*T) R) ([]R, error) {
	result := make([]R, 0)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate documents")
		}

		var d T
		if err := doc.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal document", goerr.V("id", doc.Ref.ID))
		}
		result = append(result, conv(&d))
	}
	return result, nil
}

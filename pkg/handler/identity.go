package handler

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

var itemNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:orbeon-forms:repeat-item"))

type itemIdentity struct {
	URI        string      `msgpack:"u"`
	Local      string      `msgpack:"l"`
	Attributes [][3]string `msgpack:"a"`
	Matched    string      `msgpack:"m"`
	Scope      []int       `msgpack:"s"`
	Position   int         `msgpack:"p"`
}

// ItemKey returns the identity of the item at position (1-based) of the
// repeat described by desc. The key depends only on the element, the
// enclosing repeat positions and position, so it is identical across
// renders of the same document.
func ItemKey(desc Descriptor, position int) (string, error) {
	id := itemIdentity{
		URI:      desc.URI,
		Local:    desc.LocalName,
		Scope:    desc.Context.Positions(),
		Position: position,
	}
	for _, attr := range desc.Attributes.All() {
		id.Attributes = append(id.Attributes, [3]string{attr.URI, attr.Local, attr.Value})
	}
	if desc.Matched != nil {
		id.Matched = fmt.Sprint(desc.Matched)
	}
	encoded, err := msgpack.Marshal(&id)
	if err != nil {
		return "", fmt.Errorf("handler: encode item identity: %w", err)
	}
	return uuid.NewSHA1(itemNamespace, encoded).String(), nil
}

package yangctx

import (
	"encoding/xml"
	"strings"

	"github.com/netconf-core/netconf/netconf/common"
)

// parseElement decodes a single top-level XML element into a
// *common.Element, the generic tree representation the rest of this
// module exchanges.
func parseElement(x string) (*common.Element, error) {
	dec := xml.NewDecoder(strings.NewReader(x))
	var elem common.Element
	if err := dec.Decode(&elem); err != nil {
		return nil, err
	}
	return &elem, nil
}

package dataset

import (
	"encoding/xml"
	"io"
	"strconv"
	"strings"

	"github.com/Laisky/errors/v2"
)

type node struct {
	name     string
	attrs    []xml.Attr
	children []*node
	text     strings.Builder
}

func parseXML(r io.Reader) ([]Record, error) {
	root, err := decodeTree(r)
	if err != nil {
		return nil, err
	}

	items := recordSet(root)
	records := make([]Record, 0, len(items))
	for _, item := range items {
		rec := Record{}
		if len(item.children) == 0 && len(item.attrs) == 0 {
			rec[item.name] = ParseScalar(item.text.String())
		} else {
			flatten(item, "", rec)
		}
		records = append(records, rec)
	}

	return records, nil
}

func decodeTree(r io.Reader) (*node, error) {
	dec := xml.NewDecoder(r)
	var (
		root  *node
		stack []*node
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "decode xml")
		}

		switch t := tok.(type) {
		case xml.StartElement:
			n := &node{name: t.Name.Local, attrs: t.Attr}
			if len(stack) == 0 {
				if root != nil {
					return nil, errors.New("xml has more than one root element")
				}
				root = n
			} else {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, n)
			}
			stack = append(stack, n)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text.Write(t)
			}
		}
	}
	if root == nil {
		return nil, errors.New("xml has no root element")
	}

	return root, nil
}

// recordSet returns the children of the first element, breadth first, that
// holds a repeated child tag. A document without one is a single record.
func recordSet(root *node) []*node {
	queue := []*node{root}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]

		if tag, ok := repeatedTag(n); ok {
			var items []*node
			for _, c := range n.children {
				if c.name == tag {
					items = append(items, c)
				}
			}
			return items
		}
		queue = append(queue, n.children...)
	}

	return []*node{root}
}

func repeatedTag(n *node) (string, bool) {
	counts := map[string]int{}
	for _, c := range n.children {
		counts[c.name]++
		if counts[c.name] > 1 {
			return c.name, true
		}
	}

	return "", false
}

func flatten(n *node, prefix string, rec Record) {
	for _, attr := range n.attrs {
		rec[join(prefix, "@"+attr.Name.Local)] = ParseScalar(attr.Value)
	}

	counts := map[string]int{}
	for _, c := range n.children {
		counts[c.name]++
	}
	seen := map[string]int{}
	for _, c := range n.children {
		path := join(prefix, c.name)
		if counts[c.name] > 1 {
			path = join(path, strconv.Itoa(seen[c.name]))
			seen[c.name]++
		}

		if len(c.children) == 0 && len(c.attrs) == 0 {
			rec[path] = ParseScalar(c.text.String())
			continue
		}
		flatten(c, path, rec)
	}
}

func join(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

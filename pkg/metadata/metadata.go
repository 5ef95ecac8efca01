// Package metadata builds the structural sidecar document describing every
// series of a slide, persisted once per conversion next to the tile tree.
package metadata

import (
	"encoding/xml"
	"fmt"
	"os"
	"time"

	"slidetiler/pkg/decode"
)

// Filename is the sidecar file written into the output directory.
const Filename = "METADATA.xml"

// Document is the root of the structural metadata sidecar.
type Document struct {
	XMLName   xml.Name `xml:"SlideMetadata"`
	Generator string   `xml:"generator,attr"`
	Created   string   `xml:"created,attr"`
	Series    []Series `xml:"Series"`
}

// Series describes the structural parameters of one image in the container.
type Series struct {
	Index        int    `xml:"index,attr"`
	SizeX        int    `xml:"SizeX"`
	SizeY        int    `xml:"SizeY"`
	PlaneCount   int    `xml:"PlaneCount"`
	PixelType    string `xml:"PixelType"`
	Channels     int    `xml:"Channels"`
	Interleaved  bool   `xml:"Interleaved"`
	LittleEndian bool   `xml:"LittleEndian"`
	Resolutions  int    `xml:"Resolutions,omitempty"`
}

// Build reads the structural description of every series from a single
// decoder handle. The handle's series cursor is walked across the container
// and restored to series 0, so Build must only run while no other work holds
// pooled handles. resolutions applies to series 0 only; extra series are not
// pyramided.
func Build(d decode.Decoder, generator string, resolutions int) (*Document, error) {
	doc := &Document{
		Generator: generator,
		Created:   time.Now().UTC().Format(time.RFC3339),
	}
	for i := 0; i < d.SeriesCount(); i++ {
		if err := d.SetSeries(i); err != nil {
			return nil, fmt.Errorf("describing series %d: %w", i, err)
		}
		s := Series{
			Index:        i,
			SizeX:        d.SizeX(),
			SizeY:        d.SizeY(),
			PlaneCount:   d.ImageCount(),
			PixelType:    d.PixelType().String(),
			Channels:     d.RGBChannelCount(),
			Interleaved:  d.IsInterleaved(),
			LittleEndian: d.IsLittleEndian(),
		}
		if i == 0 {
			s.Resolutions = resolutions
		}
		doc.Series = append(doc.Series, s)
	}
	if err := d.SetSeries(0); err != nil {
		return nil, fmt.Errorf("restoring series cursor: %w", err)
	}
	return doc, nil
}

// Write persists the document as indented XML.
func (doc *Document) Write(path string) error {
	data, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}
	out := append([]byte(xml.Header), data...)
	out = append(out, '\n')
	if err := os.WriteFile(path, out, 0644); err != nil {
		return fmt.Errorf("writing metadata file: %w", err)
	}
	return nil
}

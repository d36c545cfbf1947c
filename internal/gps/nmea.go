package gps

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	nmea "github.com/adrianmo/go-nmea"
	"github.com/rs/zerolog/log"
)

const knotsToMps = 1852.0 / 3600.0

// RMC field positions after the sentence type.
const (
	rmcSpeedField  = 6
	rmcCourseField = 7
)

// GST field positions: 1-sigma latitude and longitude errors in metres.
const (
	typeGST              = "GST"
	gstLatitudeErrField  = 5
	gstLongitudeErrField = 6
)

// gst is the pseudorange error statistics sentence. go-nmea has no parser
// for it, so the decoder registers one.
type gst struct {
	nmea.BaseSentence
	LatitudeError  nmea.Float64
	LongitudeError nmea.Float64
}

func parseGST(s nmea.BaseSentence) (nmea.Sentence, error) {
	p := nmea.NewParser(s)
	p.AssertType(typeGST)
	return gst{
		BaseSentence:   s,
		LatitudeError:  p.NullFloat64(gstLatitudeErrField, "latitude error"),
		LongitudeError: p.NullFloat64(gstLongitudeErrField, "longitude error"),
	}, p.Err()
}

// Decoder turns NMEA sentences into samples. RMC sentences carry the fix;
// GST sentences, when the receiver emits them, refine the accuracy of the
// next fix. A Decoder is not safe for concurrent use.
type Decoder struct {
	now       func() time.Time
	parser    nmea.SentenceParser
	accuracyM float64
}

// NewDecoder returns a decoder stamping samples with now.
func NewDecoder(now func() time.Time) *Decoder {
	if now == nil {
		now = time.Now
	}
	return &Decoder{
		now: now,
		parser: nmea.SentenceParser{
			CustomParsers: map[string]nmea.ParserFunc{typeGST: parseGST},
		},
	}
}

// Decode parses one line. ok is true only when the line produced a sample.
// A void RMC yields ErrNoFix; noise and unsupported sentences are ignored.
func (d *Decoder) Decode(line string) (s Sample, ok bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" || !strings.HasPrefix(line, "$") {
		return Sample{}, false, nil
	}

	sentence, err := d.parser.Parse(line)
	if err != nil {
		// noisy GPS or partial sentences
		log.Trace().Err(err).Str("line", line).Msg("gps: NMEA parse error")
		return Sample{}, false, nil
	}

	switch sentence.DataType() {
	case typeGST:
		m := sentence.(gst)
		// receivers leave the error fields empty until they have statistics
		if m.LatitudeError.Valid && m.LongitudeError.Valid {
			d.accuracyM = math.Hypot(m.LatitudeError.Value, m.LongitudeError.Value)
		}
		return Sample{}, false, nil

	case nmea.TypeRMC:
		m := sentence.(nmea.RMC)
		if m.Validity != nmea.ValidRMC {
			return Sample{}, false, ErrNoFix
		}

		s = Sample{
			Latitude:     m.Latitude,
			Longitude:    m.Longitude,
			AccuracyM:    d.accuracyM,
			CapturedAtMs: d.now().UnixMilli(),
		}
		if fieldPresent(m.BaseSentence, rmcSpeedField) {
			s.Speed = Float(m.Speed * knotsToMps)
		}
		if fieldPresent(m.BaseSentence, rmcCourseField) {
			s.Heading = Float(m.Course)
		}
		if err := s.Validate(); err != nil {
			return Sample{}, false, fmt.Errorf("gps: %w", err)
		}
		return s, true, nil

	default:
		// GGA, GSA, GSV, ... are not needed for the clock
		return Sample{}, false, nil
	}
}

func fieldPresent(b nmea.BaseSentence, i int) bool {
	return i < len(b.Fields) && strings.TrimSpace(b.Fields[i]) != ""
}

// ReadStream decodes r line by line until it fails or ctx is done.
func ReadStream(ctx context.Context, r io.Reader, d *Decoder, onSample func(Sample), onError func(error)) error {
	reader := bufio.NewReader(r)
	for {
		if ctx.Err() != nil {
			return nil
		}

		line, err := reader.ReadString('\n')
		if line != "" {
			if s, ok, derr := d.Decode(line); derr != nil {
				onError(derr)
			} else if ok {
				onSample(s)
			}
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("gps: read: %w", err)
		}
	}
}

package state

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"google.golang.org/protobuf/encoding/protowire"
)

const (
	updateSourceField protowire.Number = 1
	updateDestField   protowire.Number = 2
	updateVectorField protowire.Number = 3
)

var ErrMalformedUpdate = errors.New("malformed update")

func (m Metric) MarshalText() ([]byte, error) {
	if m == Unbounded {
		return []byte("inf"), nil
	}
	return []byte(strconv.FormatUint(uint64(m), 10)), nil
}

func (m *Metric) UnmarshalText(text []byte) error {
	s := strings.ToLower(strings.TrimSpace(string(text)))
	switch s {
	case "inf", "infinity", "∞":
		*m = Unbounded
		return nil
	}
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return fmt.Errorf("invalid metric %q: must be a non-negative integer or inf", string(text))
	}
	*m = Metric(v)
	return nil
}

func (m Metric) MarshalYAML() (any, error) {
	if m == Unbounded {
		return "inf", nil
	}
	return uint64(m), nil
}

func (m *Metric) UnmarshalYAML(unmarshal func(any) error) error {
	var raw any
	if err := unmarshal(&raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case string:
		return m.UnmarshalText([]byte(v))
	case uint64:
		if v > uint64(Unbounded) {
			return fmt.Errorf("invalid metric %d: out of range", v)
		}
		return m.fromInt(int64(v))
	case int64:
		return m.fromInt(v)
	case int:
		return m.fromInt(int64(v))
	case float64:
		if v != float64(int64(v)) {
			return fmt.Errorf("invalid metric %v: must be an integer", v)
		}
		return m.fromInt(int64(v))
	}
	return fmt.Errorf("invalid metric %v", raw)
}

func (m *Metric) fromInt(v int64) error {
	if v < 0 {
		return fmt.Errorf("invalid metric %d: negative costs are not supported", v)
	}
	if v > int64(Unbounded) {
		return fmt.Errorf("invalid metric %d: out of range", v)
	}
	*m = Metric(v)
	return nil
}

// MarshalBinary encodes the update using the protobuf wire format, with the vector as a packed repeated field.
func (u Update) MarshalBinary() ([]byte, error) {
	if u.Source < 0 || u.Dest < 0 {
		return nil, fmt.Errorf("%w: negative node id in %s", ErrMalformedUpdate, u)
	}
	b := make([]byte, 0, 8+len(u.Vector)*2)
	b = protowire.AppendTag(b, updateSourceField, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(u.Source))
	b = protowire.AppendTag(b, updateDestField, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(u.Dest))

	packed := make([]byte, 0, len(u.Vector)*2)
	for _, m := range u.Vector {
		packed = protowire.AppendVarint(packed, uint64(m))
	}
	b = protowire.AppendTag(b, updateVectorField, protowire.BytesType)
	b = protowire.AppendBytes(b, packed)
	return b, nil
}

func (u *Update) UnmarshalBinary(b []byte) error {
	*u = Update{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %w", ErrMalformedUpdate, protowire.ParseError(n))
		}
		b = b[n:]
		switch {
		case num == updateSourceField && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return fmt.Errorf("%w: source: %w", ErrMalformedUpdate, protowire.ParseError(n))
			}
			u.Source = NodeId(v)
			b = b[n:]
		case num == updateDestField && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return fmt.Errorf("%w: dest: %w", ErrMalformedUpdate, protowire.ParseError(n))
			}
			u.Dest = NodeId(v)
			b = b[n:]
		case num == updateVectorField && typ == protowire.BytesType:
			packed, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return fmt.Errorf("%w: vector: %w", ErrMalformedUpdate, protowire.ParseError(n))
			}
			vec, err := decodePacked(packed)
			if err != nil {
				return err
			}
			u.Vector = append(u.Vector, vec...)
			b = b[n:]
		default:
			// unknown fields are skipped, as any protobuf reader would
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return fmt.Errorf("%w: field %d: %w", ErrMalformedUpdate, num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return nil
}

func decodePacked(b []byte) (CostVector, error) {
	vec := make(CostVector, 0, len(b))
	for len(b) > 0 {
		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return nil, fmt.Errorf("%w: vector entry: %w", ErrMalformedUpdate, protowire.ParseError(n))
		}
		if v > uint64(Unbounded) {
			return nil, fmt.Errorf("%w: metric %d out of range", ErrMalformedUpdate, v)
		}
		vec = append(vec, Metric(v))
		b = b[n:]
	}
	return vec, nil
}

//
// Copyright (c) SAS Institute Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//

package pkcs7

import (
	"encoding/asn1"
	"errors"
	"fmt"
	"reflect"
)

type ErrNoAttribute struct {
	ID asn1.ObjectIdentifier
}

func (e ErrNoAttribute) Error() string {
	return fmt.Sprintf("attribute not found: %s", e.ID)
}

// Add marshals a value and appends it to the attribute of the given type,
// creating the attribute if it does not exist yet. Values keep the order in
// which they were added.
func (l *AttributeList) Add(oid asn1.ObjectIdentifier, obj interface{}) error {
	value, err := asn1.Marshal(obj)
	if err != nil {
		return err
	}
	for i := range *l {
		attr := &(*l)[i]
		if !attr.Type.Equal(oid) {
			continue
		}
		attr.Values.Bytes = append(attr.Values.Bytes, value...)
		// drop the decoded encoding so the new value gets marshalled
		attr.Values.FullBytes = nil
		return nil
	}
	*l = append(*l, Attribute{
		Type: oid,
		Values: asn1.RawValue{
			Class:      asn1.ClassUniversal,
			Tag:        asn1.TagSet,
			IsCompound: true,
			Bytes:      value,
		}})
	return nil
}

// Exists returns true if the attribute is present in the list
func (l AttributeList) Exists(oid asn1.ObjectIdentifier) bool {
	for _, attr := range l {
		if attr.Type.Equal(oid) {
			return true
		}
	}
	return false
}

// GetOne unmarshals the single value of an attribute. It is an error if the
// attribute has more than one value.
func (l AttributeList) GetOne(oid asn1.ObjectIdentifier, dest interface{}) error {
	for _, attr := range l {
		if !attr.Type.Equal(oid) {
			continue
		}
		rest, err := asn1.Unmarshal(attr.Values.Bytes, dest)
		if err != nil {
			return fmt.Errorf("attribute %s: %w", oid, err)
		} else if len(rest) != 0 {
			return fmt.Errorf("attribute %s: expected one value but found multiple", oid)
		}
		return nil
	}
	return ErrNoAttribute{oid}
}

// GetAll unmarshals every value of an attribute into a pointer to a slice
func (l AttributeList) GetAll(oid asn1.ObjectIdentifier, dest interface{}) error {
	rv := reflect.ValueOf(dest)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Slice {
		return errors.New("pkcs7: GetAll destination must be a pointer to a slice")
	}
	sv := rv.Elem()
	et := sv.Type().Elem()
	found := false
	for _, attr := range l {
		if !attr.Type.Equal(oid) {
			continue
		}
		found = true
		values := attr.Values.Bytes
		for len(values) > 0 {
			ev := reflect.New(et)
			var err error
			values, err = asn1.Unmarshal(values, ev.Interface())
			if err != nil {
				return fmt.Errorf("attribute %s: %w", oid, err)
			}
			sv = reflect.Append(sv, ev.Elem())
		}
	}
	if !found {
		return ErrNoAttribute{oid}
	}
	rv.Elem().Set(sv)
	return nil
}

// Bytes returns the list encoded as an explicit SET OF, which is what the
// signature covers. See RFC 2315 9.3. The attributes are not re-sorted so the
// result matches the implicitly tagged form carried in the SignerInfo.
func (l AttributeList) Bytes() ([]byte, error) {
	return marshalUnsortedSet(l)
}

func marshalUnsortedSet(value interface{}) ([]byte, error) {
	encoded, err := asn1.Marshal(value)
	if err != nil {
		return nil, err
	}
	encoded[0] = 0x31
	return encoded, nil
}

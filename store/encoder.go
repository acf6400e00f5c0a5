package store

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/MrEthical07/boardguard/ordering"
	"github.com/MrEthical07/boardguard/permission"
	"github.com/MrEthical07/boardguard/rbac"
)

// Record schema versions. Each record type carries its own leading byte.
const (
	resourceFormatVersion = 1
	stepFormatVersion     = 1
	roleFormatVersion     = 1
	memberFormatVersion   = 1
)

// ErrCorruptRecord is returned when a stored record cannot be decoded.
var ErrCorruptRecord = errors.New("corrupt record")

func writeString(buf *bytes.Buffer, field, s string) error {
	if len(s) > 255 {
		return fmt.Errorf("%s too long", field)
	}
	buf.WriteByte(byte(len(s)))
	buf.WriteString(s)
	return nil
}

func readString(r *bytes.Reader) (string, error) {
	n, err := r.ReadByte()
	if err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

func readMask(r *bytes.Reader) (permission.Mask, error) {
	b := make([]byte, permission.MaskSize)
	if _, err := io.ReadFull(r, b); err != nil {
		return 0, err
	}
	return permission.DecodeMask(b)
}

func writeItem(buf *bytes.Buffer, it ordering.Item) error {
	if it.Position < 0 || it.Position > 0xFFFFFFFF {
		return errors.New("position out of range")
	}
	var pinned byte
	if it.Pinned {
		pinned = 1
	}
	var tmp [8]byte
	binary.BigEndian.PutUint32(tmp[:4], uint32(it.Position))
	buf.Write(tmp[:4])
	buf.WriteByte(pinned)
	var nanos int64
	if !it.UpdatedAt.IsZero() {
		nanos = it.UpdatedAt.UnixNano()
	}
	binary.BigEndian.PutUint64(tmp[:], uint64(nanos))
	buf.Write(tmp[:])
	return nil
}

func readItem(r *bytes.Reader, id string) (ordering.Item, error) {
	var pos uint32
	if err := binary.Read(r, binary.BigEndian, &pos); err != nil {
		return ordering.Item{}, err
	}
	pinned, err := r.ReadByte()
	if err != nil {
		return ordering.Item{}, err
	}
	if pinned > 1 {
		return ordering.Item{}, errors.New("invalid pinned flag")
	}
	var updated int64
	if err := binary.Read(r, binary.BigEndian, &updated); err != nil {
		return ordering.Item{}, err
	}
	it := ordering.Item{ID: id, Position: int(pos), Pinned: pinned == 1}
	if updated != 0 {
		it.UpdatedAt = time.Unix(0, updated).UTC()
	}
	return it, nil
}

func checkVersion(r *bytes.Reader, want byte) error {
	v, err := r.ReadByte()
	if err != nil {
		return err
	}
	if v != want {
		return fmt.Errorf("unsupported record schema version %d", v)
	}
	return nil
}

func finish(r *bytes.Reader) error {
	if r.Len() != 0 {
		return errors.New("trailing bytes")
	}
	return nil
}

func corrupt(err error) error {
	return fmt.Errorf("%w: %v", ErrCorruptRecord, err)
}

// EncodeResource encodes a board or project record.
func EncodeResource(res rbac.Resource) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(resourceFormatVersion)
	for _, f := range []struct{ name, v string }{
		{"resource id", res.ID},
		{"domain", string(res.Domain)},
		{"owner id", res.OwnerID},
		{"name", res.Name},
		{"project id", res.ProjectID},
	} {
		if err := writeString(&buf, f.name, f.v); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// DecodeResource decodes a record produced by [EncodeResource].
func DecodeResource(data []byte) (rbac.Resource, error) {
	r := bytes.NewReader(data)
	if err := checkVersion(r, resourceFormatVersion); err != nil {
		return rbac.Resource{}, corrupt(err)
	}

	var fields [5]string
	for i := range fields {
		s, err := readString(r)
		if err != nil {
			return rbac.Resource{}, corrupt(err)
		}
		fields[i] = s
	}
	if err := finish(r); err != nil {
		return rbac.Resource{}, corrupt(err)
	}

	return rbac.Resource{
		ID:        fields[0],
		Domain:    permission.Domain(fields[1]),
		OwnerID:   fields[2],
		Name:      fields[3],
		ProjectID: fields[4],
	}, nil
}

// EncodeStep encodes a step record.
func EncodeStep(s ordering.Step) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(stepFormatVersion)
	if err := writeString(&buf, "step id", s.ID); err != nil {
		return nil, err
	}
	if err := writeString(&buf, "board id", s.BoardID); err != nil {
		return nil, err
	}
	if err := writeString(&buf, "step name", s.Name); err != nil {
		return nil, err
	}
	if err := writeItem(&buf, s.Item); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeStep decodes a record produced by [EncodeStep].
func DecodeStep(data []byte) (ordering.Step, error) {
	r := bytes.NewReader(data)
	if err := checkVersion(r, stepFormatVersion); err != nil {
		return ordering.Step{}, corrupt(err)
	}

	id, err := readString(r)
	if err != nil {
		return ordering.Step{}, corrupt(err)
	}
	boardID, err := readString(r)
	if err != nil {
		return ordering.Step{}, corrupt(err)
	}
	name, err := readString(r)
	if err != nil {
		return ordering.Step{}, corrupt(err)
	}
	item, err := readItem(r, id)
	if err != nil {
		return ordering.Step{}, corrupt(err)
	}
	if err := finish(r); err != nil {
		return ordering.Step{}, corrupt(err)
	}

	return ordering.Step{Item: item, BoardID: boardID, Name: name}, nil
}

// EncodeRole encodes a role record.
func EncodeRole(role rbac.Role) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(roleFormatVersion)
	if err := writeString(&buf, "role id", role.ID); err != nil {
		return nil, err
	}
	if err := writeString(&buf, "resource id", role.ResourceID); err != nil {
		return nil, err
	}
	if err := writeString(&buf, "role name", role.Name); err != nil {
		return nil, err
	}
	buf.Write(permission.EncodeMask(role.Granted))
	buf.Write(permission.EncodeMask(role.Denied))
	if err := writeItem(&buf, role.Item); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeRole decodes a record produced by [EncodeRole].
func DecodeRole(data []byte) (rbac.Role, error) {
	r := bytes.NewReader(data)
	if err := checkVersion(r, roleFormatVersion); err != nil {
		return rbac.Role{}, corrupt(err)
	}

	id, err := readString(r)
	if err != nil {
		return rbac.Role{}, corrupt(err)
	}
	resourceID, err := readString(r)
	if err != nil {
		return rbac.Role{}, corrupt(err)
	}
	name, err := readString(r)
	if err != nil {
		return rbac.Role{}, corrupt(err)
	}
	granted, err := readMask(r)
	if err != nil {
		return rbac.Role{}, corrupt(err)
	}
	denied, err := readMask(r)
	if err != nil {
		return rbac.Role{}, corrupt(err)
	}
	item, err := readItem(r, id)
	if err != nil {
		return rbac.Role{}, corrupt(err)
	}
	if err := finish(r); err != nil {
		return rbac.Role{}, corrupt(err)
	}

	return rbac.Role{
		Item:       item,
		ResourceID: resourceID,
		Name:       name,
		Granted:    granted,
		Denied:     denied,
	}, nil
}

// EncodeMember encodes a member record. Roles are stored by ID only.
func EncodeMember(m rbac.Member) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(memberFormatVersion)
	if err := writeString(&buf, "member id", m.ID); err != nil {
		return nil, err
	}
	if err := writeString(&buf, "user id", m.UserID); err != nil {
		return nil, err
	}
	if err := writeString(&buf, "resource id", m.ResourceID); err != nil {
		return nil, err
	}
	if len(m.Roles) > 0xFFFF {
		return nil, errors.New("too many roles")
	}
	var n [2]byte
	binary.BigEndian.PutUint16(n[:], uint16(len(m.Roles)))
	buf.Write(n[:])
	for _, role := range m.Roles {
		if err := writeString(&buf, "role id", role.ID); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// DecodeMember decodes a record produced by [EncodeMember]. The returned
// member's roles carry only their IDs.
func DecodeMember(data []byte) (rbac.Member, error) {
	r := bytes.NewReader(data)
	if err := checkVersion(r, memberFormatVersion); err != nil {
		return rbac.Member{}, corrupt(err)
	}

	id, err := readString(r)
	if err != nil {
		return rbac.Member{}, corrupt(err)
	}
	userID, err := readString(r)
	if err != nil {
		return rbac.Member{}, corrupt(err)
	}
	resourceID, err := readString(r)
	if err != nil {
		return rbac.Member{}, corrupt(err)
	}
	var n uint16
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return rbac.Member{}, corrupt(err)
	}
	if int(n) > r.Len() {
		return rbac.Member{}, corrupt(errors.New("role count exceeds record"))
	}
	roles := make([]rbac.Role, 0, n)
	for i := 0; i < int(n); i++ {
		roleID, err := readString(r)
		if err != nil {
			return rbac.Member{}, corrupt(err)
		}
		roles = append(roles, rbac.Role{Item: ordering.Item{ID: roleID}, ResourceID: resourceID})
	}
	if err := finish(r); err != nil {
		return rbac.Member{}, corrupt(err)
	}

	return rbac.Member{ID: id, UserID: userID, ResourceID: resourceID, Roles: roles}, nil
}

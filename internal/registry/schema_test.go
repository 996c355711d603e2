package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/dofuswire/internal/bytearray"
	"firestige.xyz/dofuswire/internal/codec"
)

func loadFixture(t *testing.T) *Schema {
	t.Helper()
	s, err := Load(filepath.Join("testdata", "protocol.json"))
	require.NoError(t, err)
	return s
}

func decodeBody(t *testing.T, s *Schema, id uint16, body []byte) (any, *codec.Codec, error) {
	t.Helper()
	e, ok := s.Lookup(id)
	require.True(t, ok, "message %d not registered", id)
	c := codec.New(bytearray.From(body))
	v, err := e.Decode(c)
	return v, c, err
}

func TestLoadJSON(t *testing.T) {
	s := loadFixture(t)
	assert.Equal(t, "2.63", s.Version())
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, 6, s.TypeCount())
	assert.Equal(t, []uint16{1, 3, 4417}, s.IDs())

	e, ok := s.Lookup(3)
	require.True(t, ok)
	assert.Equal(t, "HelloConnectMessage", e.Name)

	_, ok = s.Lookup(2)
	assert.False(t, ok)
}

func TestParseJSONEscapes(t *testing.T) {
	data := []byte(`{
	"version": "2.63\/beta",
	"note": "r\u00e9sum\u00e9 \/ \t",
	"msg_from_id": {"1": {"name": "ProtocolRequired"}},
	"types_from_id": {},
	"types": {
		"ProtocolRequired": {
			"parent": null,
			"boolVars": [],
			"vars": [{"name": "version", "type": "UTF", "length": null, "optional": true}]
		}
	}
}`)
	d, err := Parse(data, FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, "2.63/beta", d.Version)

	s, err := Compile(d)
	require.NoError(t, err)

	b := bytearray.New()
	require.NoError(t, b.WriteUTF("2.63"))
	v, _, err := decodeBody(t, s, 1, b.Bytes())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"version": "2.63"}, v)
}

func TestParseJSONRejectsYAML(t *testing.T) {
	_, err := Parse([]byte("version: \"2.63\"\n"), FormatJSON)
	assert.ErrorContains(t, err, "parse json description")
}

func TestDecodeFlatMessage(t *testing.T) {
	s := loadFixture(t)

	b := bytearray.New()
	require.NoError(t, b.WriteUTF("2.63.1"))

	v, c, err := decodeBody(t, s, 1, b.Bytes())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"version": "2.63.1"}, v)
	assert.Zero(t, c.BytesAvailable())
}

func TestDecodeBoolFlagsAndVectors(t *testing.T) {
	s := loadFixture(t)

	b := bytearray.New()
	b.WriteUint8(0b0000_0101) // f0, f2
	b.WriteUint8(0b0000_0001) // f8
	require.NoError(t, b.WriteUTF("abc"))
	c := codec.New(b)
	c.WriteVarInt(3)
	b.WriteInt8(1)
	b.WriteInt8(-2)
	b.WriteInt8(3)

	v, dc, err := decodeBody(t, s, 3, b.Bytes())
	require.NoError(t, err)

	got := v.(map[string]any)
	for i, want := range []bool{true, false, true, false, false, false, false, false, true} {
		name := "f" + string(rune('0'+i))
		assert.Equal(t, want, got[name], name)
	}
	assert.Equal(t, "abc", got["salt"])
	assert.Equal(t, []any{int8(1), int8(-2), int8(3)}, got["key"])
	assert.Zero(t, dc.BytesAvailable())
}

func TestDecodePolymorphicAndInherited(t *testing.T) {
	s := loadFixture(t)

	b := bytearray.New()
	c := codec.New(b)
	b.WriteUint16(1)   // actor count
	b.WriteUint16(150) // GameRolePlayActorInformations
	b.WriteFloat64(12.5)
	b.WriteUint8(0x01) // bonesId
	b.WriteUint16(2)   // skins
	b.WriteUint8(0x0A)
	b.WriteUint8(0x0B)
	c.WriteVarInt(2)
	b.WriteUint8(0xDE)
	b.WriteUint8(0xAD)

	v, dc, err := decodeBody(t, s, 4417, b.Bytes())
	require.NoError(t, err)

	want := map[string]any{
		"actors": []any{
			map[string]any{
				TypeKey:        "GameRolePlayActorInformations",
				"contextualId": float64(12.5),
				"look": map[string]any{
					"bonesId": int16(1),
					"skins":   []any{int16(10), int16(11)},
				},
			},
		},
		"signature": []byte{0xDE, 0xAD},
	}
	assert.Equal(t, want, v)
	assert.Zero(t, dc.BytesAvailable())
}

func TestDecodeUnknownTypeID(t *testing.T) {
	s := loadFixture(t)

	b := bytearray.New()
	b.WriteUint16(1)
	b.WriteUint16(999)

	_, _, err := decodeBody(t, s, 4417, b.Bytes())
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestDecodeUnderrun(t *testing.T) {
	s := loadFixture(t)
	_, _, err := decodeBody(t, s, 1, []byte{0x00, 0x09, 'a'})
	assert.ErrorIs(t, err, bytearray.ErrOutOfRange)
}

func TestValidate(t *testing.T) {
	d := &Description{
		MsgFromID: map[string]Named{
			"1":     {Name: "Missing"},
			"70000": {Name: "Child"},
		},
		TypesFromID: map[string]Named{"5": {Name: "Ghost"}},
		Types: map[string]TypeDef{
			"Child": {
				Parent: "NoSuchParent",
				Vars: []Var{
					{Name: "a", Type: "Int", Length: "Vector"},
					{Name: "b", Type: "ByteArray"},
					{Name: "c", Type: "Undefined"},
				},
			},
		},
	}

	err := d.Validate()
	require.ErrorIs(t, err, ErrInvalidSchema)
	for _, fragment := range []string{
		"message 1 (Missing) has no type definition",
		`message id "70000" is not a 16-bit number`,
		"type id 5 names undefined type Ghost",
		"type Child extends undefined parent NoSuchParent",
		"Child.a: length type Vector is not a primitive",
		"Child.b: ByteArray needs a length type",
		"Child.c: undefined type Undefined",
	} {
		assert.Contains(t, err.Error(), fragment)
	}

	_, err = Compile(d)
	assert.ErrorIs(t, err, ErrInvalidSchema)
}

func TestParentCycleIsBounded(t *testing.T) {
	s, err := Compile(&Description{
		MsgFromID: map[string]Named{"1": {Name: "A"}},
		Types: map[string]TypeDef{
			"A": {Parent: "B"},
			"B": {Parent: "A"},
		},
	})
	require.NoError(t, err)

	_, _, err = decodeBody(t, s, 1, nil)
	assert.ErrorIs(t, err, ErrInvalidSchema)
}

func TestLoadYAMLAndTOML(t *testing.T) {
	dir := t.TempDir()

	yamlDoc := `version: "2.64"
msg_from_id:
  "7": { name: Ping }
types:
  Ping:
    vars:
      - { name: quiet, type: Boolean }
`
	tomlDoc := `version = "2.64"

[msg_from_id.7]
name = "Ping"

[types.Ping]
[[types.Ping.vars]]
name = "quiet"
type = "Boolean"
`
	for file, doc := range map[string]string{"p.yaml": yamlDoc, "p.toml": tomlDoc} {
		t.Run(file, func(t *testing.T) {
			path := filepath.Join(dir, file)
			require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

			s, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, "2.64", s.Version())

			v, _, err := decodeBody(t, s, 7, []byte{0x01})
			require.NoError(t, err)
			assert.Equal(t, map[string]any{"quiet": true}, v)
		})
	}
}

func TestFormatFromPath(t *testing.T) {
	_, err := FormatFromPath("messages.xml")
	assert.ErrorIs(t, err, ErrUnsupported)

	f, err := FormatFromPath("MESSAGES.YML")
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, f)
}

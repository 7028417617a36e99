package object

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestObjectIsNil(t *testing.T) {
	var nilPtr *Object
	assert.True(t, nilPtr.IsNil())

	assert.True(t, (&Object{}).IsNil())
	assert.False(t, (&Object{Data: []byte("x")}).IsNil())
	assert.False(t, (&Object{Metadata: []byte("x")}).IsNil())
}

func TestObjectSize(t *testing.T) {
	var nilPtr *Object
	assert.Equal(t, 0, nilPtr.Size())
	assert.Equal(t, 3, (&Object{Data: []byte("abc")}).Size())
}

func TestTaskExecutionErrorMessage(t *testing.T) {
	err := &TaskExecutionError{Message: "boom"}
	assert.Contains(t, err.Error(), "boom")
}

func TestAddressString(t *testing.T) {
	addr := Address{IP: "10.0.0.1", Port: 9000}
	assert.Contains(t, addr.String(), "10.0.0.1:9000")
}

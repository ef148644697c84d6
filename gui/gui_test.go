package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBootstrapAddr(t *testing.T) {
	require.Equal(t, "", bootstrapAddr(""))
	require.Equal(t, "", bootstrapAddr("  "))
	require.Equal(t, "127.0.0.1:5000", bootstrapAddr("5000"))
	require.Equal(t, "10.0.0.2:6000", bootstrapAddr("10.0.0.2:6000"))
}

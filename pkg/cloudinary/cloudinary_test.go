package cloudinary

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestRefRoundTrip(t *testing.T) {
	ref := EncodeRef("raw", "sekolah/answer-1")
	resourceType, publicID, err := DecodeRef(ref)
	require.NoError(t, err)
	require.Equal(t, "raw", resourceType)
	require.Equal(t, "sekolah/answer-1", publicID)

	require.Equal(t, "image:x", EncodeRef("", "x"))

	_, _, err = DecodeRef("no-separator")
	require.Error(t, err)
}

func TestBuildPublicID(t *testing.T) {
	id := BuildPublicID("Lesson 1 (final).pdf")
	require.True(t, strings.HasPrefix(id, "Lesson-1--final-"))

	require.True(t, strings.HasPrefix(BuildPublicID("..."), "upload-"))
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(Config{CloudName: "demo"}, zerolog.Nop())
	require.Error(t, err)
}

package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateSlug(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{in: "Le Petit Prince", want: "le_petit_prince"},
		{in: "Le Cœur à l'Ouvrage", want: "le_coeur_a_l_ouvrage"},
		{in: "été été", want: "ete_ete"},
		{in: "  --Dune--  ", want: "dune"},
		{in: "already-clean_name", want: "already-clean_name"},
		{in: "Nguyễn Nhật Ánh", want: "nguyen_nhat_anh"},
		{in: "???", want: ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, GenerateSlug(tt.in), tt.in)
	}
}

func TestRemoveDiacritics(t *testing.T) {
	assert.Equal(t, "Ete a Paris", RemoveDiacritics("Été à Paris"))
	assert.Equal(t, "Dao Duy Anh", RemoveDiacritics("Đào Duy Anh"))
}

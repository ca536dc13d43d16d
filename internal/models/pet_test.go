package models

import "testing"

func TestRehomingPetValidate(t *testing.T) {
	price := int64(1000)
	zero := int64(0)
	negAge := -1

	tests := []struct {
		name    string
		pet     RehomingPet
		wantErr bool
	}{
		{"free ok", RehomingPet{Name: "Rex", Species: "dog", AdoptionType: AdoptionTypeFree}, false},
		{"paid ok", RehomingPet{Name: "Tom", Species: "cat", AdoptionType: AdoptionTypePaid, Price: &price}, false},
		{"paid without price", RehomingPet{Name: "Tom", Species: "cat", AdoptionType: AdoptionTypePaid}, true},
		{"paid zero price", RehomingPet{Name: "Tom", Species: "cat", AdoptionType: AdoptionTypePaid, Price: &zero}, true},
		{"free with price", RehomingPet{Name: "Rex", Species: "dog", AdoptionType: AdoptionTypeFree, Price: &price}, true},
		{"unknown type", RehomingPet{Name: "Rex", Species: "dog", AdoptionType: "lease"}, true},
		{"missing species", RehomingPet{Name: "Rex", AdoptionType: AdoptionTypeFree}, true},
		{"missing name", RehomingPet{Species: "dog", AdoptionType: AdoptionTypeFree}, true},
		{"negative age", RehomingPet{Name: "Rex", Species: "dog", AdoptionType: AdoptionTypeFree, AgeMonths: &negAge}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.pet.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

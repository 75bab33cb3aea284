package service

import (
	"context"

	"go.uber.org/zap"
)

// MobileMoneyProvider описывает оператора мобильных денег.
type MobileMoneyProvider struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Bank описывает банк для оплаты переводом.
type Bank struct {
	Name string `json:"name"`
	Code string `json:"code,omitempty"`
}

// Region описывает регион Ганы с крупными городами.
type Region struct {
	Name   string   `json:"name"`
	Cities []string `json:"cities"`
}

var mobileMoneyProviders = []MobileMoneyProvider{
	{ID: "mtn", Name: "MTN Mobile Money"},
	{ID: "vodafone", Name: "Vodafone Cash"},
	{ID: "airtel", Name: "AirtelTigo Money"},
}

var fallbackBanks = []Bank{
	{Name: "GCB Bank"},
	{Name: "Ecobank Ghana"},
	{Name: "Stanbic Bank Ghana"},
	{Name: "Absa Bank Ghana"},
	{Name: "Fidelity Bank Ghana"},
	{Name: "CalBank"},
	{Name: "Zenith Bank Ghana"},
	{Name: "Access Bank Ghana"},
}

var ghanaRegions = []Region{
	{Name: "Greater Accra", Cities: []string{"Accra", "Tema", "Madina", "Kasoa"}},
	{Name: "Ashanti", Cities: []string{"Kumasi", "Obuasi", "Ejisu"}},
	{Name: "Western", Cities: []string{"Sekondi-Takoradi", "Tarkwa"}},
	{Name: "Central", Cities: []string{"Cape Coast", "Winneba"}},
	{Name: "Eastern", Cities: []string{"Koforidua", "Nkawkaw"}},
	{Name: "Volta", Cities: []string{"Ho", "Hohoe"}},
	{Name: "Northern", Cities: []string{"Tamale", "Yendi"}},
	{Name: "Upper East", Cities: []string{"Bolgatanga"}},
	{Name: "Upper West", Cities: []string{"Wa"}},
	{Name: "Bono", Cities: []string{"Sunyani"}},
}

// MobileMoneyProviders возвращает поддерживаемых операторов мобильных денег.
func (s *Service) MobileMoneyProviders() []MobileMoneyProvider {
	return mobileMoneyProviders
}

// Banks возвращает список банков Ганы. При включённом шлюзе список берётся
// из Paystack, при ошибке используется встроенный.
func (s *Service) Banks(ctx context.Context) []Bank {
	if !s.GatewayEnabled() {
		return fallbackBanks
	}

	banks, err := s.gateway.ListBanks(ctx, "ghana")
	if err != nil || len(banks) == 0 {
		s.logger.Warn("bank list fallback", zap.Error(err))
		return fallbackBanks
	}

	res := make([]Bank, 0, len(banks))
	for _, b := range banks {
		res = append(res, Bank{Name: b.Name, Code: b.Code})
	}
	return res
}

// Locations возвращает регионы Ганы, в которых проводятся занятия.
func (s *Service) Locations() []Region {
	return ghanaRegions
}

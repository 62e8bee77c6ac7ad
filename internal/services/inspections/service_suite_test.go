package inspections

import (
	"context"
	"testing"
	"time"

	"github.com/BearBump/TruckTally/internal/models"
	"github.com/BearBump/TruckTally/internal/services/inspections/mocks"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

var (
	owner    = models.Actor{UserID: "u1", Role: models.RoleUser}
	stranger = models.Actor{UserID: "u2", Role: models.RoleUser}
	admin    = models.Actor{UserID: "boss", Role: models.RoleAdmin}
	fixedNow = time.Date(2025, 6, 1, 15, 0, 0, 0, time.UTC)
)

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func strPtr(s string) *string { return &s }

type InspectionsSuite struct {
	suite.Suite

	repo *mocks.MockRepository
	svc  *Service
}

func (s *InspectionsSuite) SetupTest() {
	s.repo = &mocks.MockRepository{}
	s.svc = New(s.repo).WithClock(func() time.Time { return fixedNow })
}

func (s *InspectionsSuite) TestCreate_DefaultsAndTrimming() {
	s.repo.On("CreateInspection", mock.Anything, mock.MatchedBy(func(in *models.Inspection) bool {
		return in.OwnerID == "u1" &&
			in.Vessel == "MV Test" &&
			in.TimeZoneID == models.DefaultTimeZoneID &&
			in.Notes != nil && *in.Notes == "hold 2" &&
			in.LogoID == nil &&
			in.CreatedAt.Equal(fixedNow) &&
			in.DeclaredTotalWeight.String() == "1000.123"
	})).Run(func(args mock.Arguments) {
		args.Get(1).(*models.Inspection).ID = 10
	}).Return(nil).Once()

	out, err := s.svc.Create(context.Background(), owner, models.InspectionInput{
		Vessel:              "  MV Test ",
		DeclaredTotalWeight: dec("1000.1234"),
		Notes:               strPtr("  hold 2  "),
		LogoID:              strPtr("   "),
	})
	s.Require().NoError(err)
	s.Require().Equal(uint64(10), out.ID)
	s.repo.AssertExpectations(s.T())
}

func (s *InspectionsSuite) TestCreate_Validation() {
	_, err := s.svc.Create(context.Background(), owner, models.InspectionInput{DeclaredTotalWeight: dec("-1")})
	s.Require().ErrorIs(err, models.ErrValidation)

	long := make([]byte, 300)
	for i := range long {
		long[i] = 'a'
	}
	_, err = s.svc.Create(context.Background(), owner, models.InspectionInput{Vessel: string(long)})
	s.Require().ErrorIs(err, models.ErrValidation)

	_, err = s.svc.Create(context.Background(), models.Actor{}, models.InspectionInput{})
	s.Require().ErrorIs(err, models.ErrForbidden)

	s.repo.AssertNotCalled(s.T(), "CreateInspection", mock.Anything, mock.Anything)
}

func (s *InspectionsSuite) TestGet_Summary() {
	insp := &models.Inspection{
		ID: 1, OwnerID: "u1", TimeZoneID: "America/New_York",
		DeclaredTotalWeight: dec("1000.000"),
		CreatedAt:           fixedNow,
	}
	net := func(v string) *models.TruckRecord {
		return &models.TruckRecord{InitialWeight: dec("0"), FinalWeight: dec(v)}
	}
	s.repo.On("GetInspection", mock.Anything, uint64(1)).Return(insp, nil).Once()
	s.repo.On("ListTruckRecords", mock.Anything, uint64(1)).
		Return([]*models.TruckRecord{net("300.500"), net("299.250"), net("400.000")}, nil).
		Once()

	d, err := s.svc.Get(context.Background(), owner, 1)
	s.Require().NoError(err)
	s.Require().Equal(3, d.Summary.RecordCount)
	s.Require().Equal("999.75", d.Summary.WeighedTotalWeight.String())
	s.Require().Equal("-0.25", d.Summary.DifferenceWeight.String())
	s.Require().Equal("-0.025", d.Summary.DifferencePercent.String())
	s.Require().Equal(11, d.CreatedAtLocal.Hour())
}

func (s *InspectionsSuite) TestGet_Errors() {
	s.repo.On("GetInspection", mock.Anything, uint64(2)).Return(nil, errors.Wrap(models.ErrNotFound, "inspection 2")).Once()
	s.repo.On("GetInspection", mock.Anything, uint64(3)).Return(&models.Inspection{ID: 3, OwnerID: "u1"}, nil).Once()

	_, err := s.svc.Get(context.Background(), owner, 2)
	s.Require().ErrorIs(err, models.ErrNotFound)

	_, err = s.svc.Get(context.Background(), stranger, 3)
	s.Require().ErrorIs(err, models.ErrForbidden)

	_, err = s.svc.Get(context.Background(), owner, 0)
	s.Require().ErrorIs(err, models.ErrValidation)

	s.repo.AssertNotCalled(s.T(), "ListTruckRecords", mock.Anything, mock.Anything)
}

func (s *InspectionsSuite) TestList_OwnerScoped() {
	s.repo.On("ListInspections", mock.Anything, "u1", defaultListLimit, 0).Return([]*models.Inspection{{ID: 1}}, nil).Once()
	s.repo.On("ListInspections", mock.Anything, "", maxListLimit, 5).Return([]*models.Inspection{{ID: 1}, {ID: 2}}, nil).Once()

	out, err := s.svc.List(context.Background(), owner, 0, -3)
	s.Require().NoError(err)
	s.Require().Len(out, 1)

	out, err = s.svc.List(context.Background(), admin, 10_000, 5)
	s.Require().NoError(err)
	s.Require().Len(out, 2)
	s.repo.AssertExpectations(s.T())
}

func (s *InspectionsSuite) TestUpdate_AdminCanEdit() {
	insp := &models.Inspection{ID: 4, OwnerID: "u1", TimeZoneID: "UTC", Notes: strPtr("old")}
	s.repo.On("GetInspection", mock.Anything, uint64(4)).Return(insp, nil).Once()
	s.repo.On("UpdateInspection", mock.Anything, mock.MatchedBy(func(in *models.Inspection) bool {
		return in.ID == 4 && in.OwnerID == "u1" && in.TimeZoneID == "Europe/Berlin" && in.Notes == nil
	})).Return(nil).Once()

	out, err := s.svc.Update(context.Background(), admin, 4, models.InspectionInput{TimeZoneID: "Europe/Berlin"})
	s.Require().NoError(err)
	s.Require().Nil(out.DeclaredTotalWeight)
	s.repo.AssertExpectations(s.T())
}

func (s *InspectionsSuite) TestDelete() {
	s.repo.On("GetInspection", mock.Anything, uint64(5)).Return(&models.Inspection{ID: 5, OwnerID: "u1"}, nil).Twice()
	s.repo.On("DeleteInspection", mock.Anything, uint64(5)).Return(nil).Once()

	s.Require().ErrorIs(s.svc.Delete(context.Background(), stranger, 5), models.ErrForbidden)
	s.Require().NoError(s.svc.Delete(context.Background(), owner, 5))
	s.repo.AssertExpectations(s.T())
}

func TestInspectionsSuite(t *testing.T) {
	suite.Run(t, new(InspectionsSuite))
}

package bootstrap

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/bxcodec/faker/v3"
	"github.com/golang/glog"

	"github.com/nexuscrm/tenantcrm/internal/application/services"
	"github.com/nexuscrm/tenantcrm/internal/domain/models"
	"github.com/nexuscrm/tenantcrm/pkg/auth"
	"github.com/nexuscrm/tenantcrm/pkg/constants"
)

type contactCreator interface {
	Create(ctx context.Context, user *auth.UserSession, in services.ContactInput) (*models.Contact, error)
}

type companyCreator interface {
	Create(ctx context.Context, user *auth.UserSession, in services.CompanyInput) (*models.Company, error)
}

type dealCreator interface {
	Create(ctx context.Context, user *auth.UserSession, in services.DealInput) (*models.Deal, error)
}

type activityCreator interface {
	Create(ctx context.Context, user *auth.UserSession, in services.ActivityInput) (*models.Activity, error)
}

// SampleSeeder fills a tenant with fake CRM records through the regular
// services, so plan limits and workflow triggers apply as for API writes.
type SampleSeeder struct {
	Contacts   contactCreator
	Companies  companyCreator
	Deals      dealCreator
	Activities activityCreator

	rnd *rand.Rand
}

// SampleSummary counts what was created
type SampleSummary struct {
	Companies  int
	Contacts   int
	Deals      int
	Activities int
}

// NewSampleSeeder wires the seeder to the service manager
func NewSampleSeeder(sm *services.ServiceManager) *SampleSeeder {
	return &SampleSeeder{
		Contacts:   sm.Contacts,
		Companies:  sm.Companies,
		Deals:      sm.Deals,
		Activities: sm.Activities,
		rnd:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

var (
	sampleStatuses   = []string{constants.ContactStatusLead, constants.ContactStatusProspect, constants.ContactStatusCustomer}
	sampleIndustries = []string{"Technology", "Healthcare", "Finance", "Retail", "Manufacturing", "Education"}
	sampleSizes      = []string{"1-10", "11-50", "51-200", "201-500", "500+"}
	sampleSources    = []string{"Website", "Referral", "LinkedIn", "Trade Show", "Cold Call"}
)

func (s *SampleSeeder) pick(values []string) string {
	return values[s.rnd.Intn(len(values))]
}

func str(v string) *string { return &v }

// Seed creates one company per five contacts, one deal per two contacts and
// a follow-up activity per contact, all owned by the given tenant admin.
func (s *SampleSeeder) Seed(ctx context.Context, admin *auth.UserSession, contacts int) (SampleSummary, error) {
	var sum SampleSummary
	if contacts <= 0 {
		return sum, nil
	}
	if s.rnd == nil {
		s.rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	var companyIDs []string
	for i := 0; i < (contacts+4)/5; i++ {
		revenue := float64(s.rnd.Intn(5_000_000) + 100_000)
		company, err := s.Companies.Create(ctx, admin, services.CompanyInput{
			Name:     str(fmt.Sprintf("%s %s", faker.LastName(), faker.Word())),
			Industry: str(s.pick(sampleIndustries)),
			Website:  str("https://" + faker.DomainName()),
			Phone:    str(faker.Phonenumber()),
			Size:     str(s.pick(sampleSizes)),
			Revenue:  &revenue,
		})
		if err != nil {
			return sum, fmt.Errorf("failed to create company: %w", err)
		}
		companyIDs = append(companyIDs, company.ID)
		sum.Companies++
	}

	for i := 0; i < contacts; i++ {
		companyID := companyIDs[i%len(companyIDs)]
		contact, err := s.Contacts.Create(ctx, admin, services.ContactInput{
			FirstName: faker.FirstName(),
			LastName:  str(faker.LastName()),
			Email:     str(fmt.Sprintf("%d.%s", i, faker.Email())),
			Phone:     str(faker.Phonenumber()),
			JobTitle:  str(faker.Word()),
			Status:    s.pick(sampleStatuses),
			Source:    str(s.pick(sampleSources)),
			LeadScore: s.rnd.Intn(100),
			CompanyID: &companyID,
		})
		if err != nil {
			return sum, fmt.Errorf("failed to create contact: %w", err)
		}
		sum.Contacts++

		if i%2 == 0 {
			value := float64(s.rnd.Intn(50_000) + 1_000)
			stage := s.pick(constants.DealStages)
			closeDate := time.Now().AddDate(0, 0, s.rnd.Intn(90))
			if _, err := s.Deals.Create(ctx, admin, services.DealInput{
				Name:      str(fmt.Sprintf("%s opportunity", contact.FirstName)),
				Value:     &value,
				Stage:     &stage,
				CloseDate: &closeDate,
				ContactID: &contact.ID,
				CompanyID: &companyID,
			}); err != nil {
				return sum, fmt.Errorf("failed to create deal: %w", err)
			}
			sum.Deals++
		}

		scheduled := time.Now().AddDate(0, 0, s.rnd.Intn(14)-7)
		activityType := s.pick([]string{constants.ActivityCall, constants.ActivityEmail, constants.ActivityMeeting, constants.ActivityTask})
		if _, err := s.Activities.Create(ctx, admin, services.ActivityInput{
			Type:        &activityType,
			Title:       str(fmt.Sprintf("Follow up with %s", contact.FirstName)),
			Description: str(faker.Sentence()),
			ScheduledAt: &scheduled,
			ContactID:   &contact.ID,
		}); err != nil {
			return sum, fmt.Errorf("failed to create activity: %w", err)
		}
		sum.Activities++
	}

	glog.Infof("Seeded %d companies, %d contacts, %d deals, %d activities for tenant %s",
		sum.Companies, sum.Contacts, sum.Deals, sum.Activities, admin.TenantID)
	return sum, nil
}

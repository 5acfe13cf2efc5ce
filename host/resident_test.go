package host

import (
	"context"
	stdErrors "errors"

	"github.com/reglet-dev/plughost/domain/entities"
	"github.com/reglet-dev/plughost/domain/errors"
	"github.com/reglet-dev/plughost/domain/ports"
)

func (s *RuntimeSuite) residentTable() (*ResidentTable, entities.InstanceID) {
	_, id := s.create(residentPath)
	table, err := s.rt.GetInterface(s.ctx, id, entities.CapabilityResident, InterfaceVersion)
	s.Require().NoError(err)
	return table.(*ResidentTable), id
}

func (s *RuntimeSuite) status(t *ResidentTable, id entities.InstanceID) entities.ExecutionStatus {
	st, err := t.Status(id)
	s.Require().NoError(err)
	return st
}

func (s *RuntimeSuite) TestResidentLifecycle() {
	t, id := s.residentTable()
	s.Equal(entities.StatusIdle, s.status(t, id))

	s.Require().NoError(t.Start(s.ctx, id))
	s.Equal(entities.StatusRunning, s.status(t, id))
	s.Require().NoError(t.Suspend(s.ctx, id))
	s.Equal(entities.StatusSuspended, s.status(t, id))
	s.Require().NoError(t.Resume(s.ctx, id))
	s.Require().NoError(t.Stop(s.ctx, id))
	s.Equal(entities.StatusCompleted, s.status(t, id))
	s.Require().NoError(t.Reset(s.ctx, id))
	s.Equal(entities.StatusIdle, s.status(t, id))

	p := s.residentMod.last()
	s.Equal([]string{"start", "suspend", "resume", "stop", "reset"}, p.hooks)
}

func (s *RuntimeSuite) TestResidentRejectsIllegalTransitions() {
	t, id := s.residentTable()

	err := t.Suspend(s.ctx, id)
	s.Equal(errors.CodeInvalidState, errors.CodeOf(err))
	s.ErrorIs(err, errors.ErrInvalidTransition)
	s.Equal(errors.CodeInvalidState, errors.CodeOf(t.Reset(s.ctx, id)))
	s.Equal(entities.StatusIdle, s.status(t, id))
	s.Empty(s.residentMod.last().hooks, "hooks only run for legal transitions")
}

func (s *RuntimeSuite) TestResidentHookFailureKeepsStatus() {
	t, id := s.residentTable()
	s.Require().NoError(t.Start(s.ctx, id))

	p := s.residentMod.last()
	p.mu.Lock()
	p.hookErr = errors.New(errors.CodeIO, "device busy")
	p.mu.Unlock()

	s.Equal(errors.CodeIO, errors.CodeOf(t.Stop(s.ctx, id)))
	s.Equal(entities.StatusRunning, s.status(t, id))
}

func (s *RuntimeSuite) TestResidentFaultDuringStart() {
	s.residentMod.newPlugin = func() *fakePlugin {
		return &fakePlugin{name: "worker", threadSafe: true, start: func(_ context.Context, fault ports.FaultFunc) error {
			crashed := make(chan struct{})
			go func() {
				fault(stdErrors.New("worker crashed"))
				close(crashed)
			}()
			<-crashed
			return nil
		}}
	}
	t, id := s.residentTable()

	s.Require().NoError(t.Start(s.ctx, id))
	s.Equal(entities.StatusError, s.status(t, id), "the fault lands after start commits")
	s.Require().NoError(t.Reset(s.ctx, id))
	s.Equal(entities.StatusIdle, s.status(t, id))
}

func (s *RuntimeSuite) TestResidentFaultAndCancel() {
	t, id := s.residentTable()
	s.Require().NoError(t.Start(s.ctx, id))

	s.residentMod.last().reportFault(stdErrors.New("sensor lost"))
	s.Equal(entities.StatusError, s.status(t, id))
	s.residentMod.last().reportFault(stdErrors.New("again"))
	s.Equal(entities.StatusError, s.status(t, id), "a second fault is ignored")

	s.Require().NoError(t.Reset(s.ctx, id))
	s.Require().NoError(t.Start(s.ctx, id))
	s.Require().NoError(s.rt.CancelResident(s.ctx, id))
	st, err := s.rt.ResidentStatus(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(entities.StatusCancelled, st)
	s.Equal(errors.CodeInvalidState, errors.CodeOf(s.rt.CancelResident(s.ctx, id)))
}

func (s *RuntimeSuite) TestResidentConfiguration() {
	t, id := s.residentTable()

	s.Require().NoError(t.UpdateConfiguration(s.ctx, id, "rate: 5"))
	cfg, err := t.Configuration(s.ctx, id)
	s.Require().NoError(err)
	s.Equal("rate: 5", cfg)

	s.Require().NoError(t.Start(s.ctx, id))
	s.Require().NoError(t.UpdateConfiguration(s.ctx, id, "rate: 9"), "accepted in every state")
}

func (s *RuntimeSuite) TestResidentStateIsSharedAcrossTables() {
	t1, id := s.residentTable()
	table, err := s.rt.GetInterface(s.ctx, id, entities.CapabilityResident, InterfaceVersion)
	s.Require().NoError(err)
	t2 := table.(*ResidentTable)

	s.Require().NoError(t1.Start(s.ctx, id))
	s.Equal(entities.StatusRunning, s.status(t2, id))
	s.Equal(errors.CodeInvalidState, errors.CodeOf(t2.Start(s.ctx, id)))
}
